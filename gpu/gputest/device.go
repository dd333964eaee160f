package gputest

import (
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/frameloop/gpu"
)

// Event is one host-visible synchronization call in the order it was made.
type Event struct {
	Op             string
	Queue          gpu.Queue
	ImageIndex     int
	Wait           []gpu.Semaphore
	WaitStages     []gpu.PipelineStageFlags
	Signal         []gpu.Semaphore
	CommandBuffers []gpu.CommandBuffer
}

const (
	OpAcquire = "acquire"
	OpSubmit  = "submit"
	OpPresent = "present"
)

type buffer struct {
	info   gpu.BufferCreateInfo
	memory gpu.DeviceMemory
}

type memory struct {
	data      []byte
	typeIndex int
	mapped    bool
}

type swapchain struct {
	info   gpu.SwapchainCreateInfo
	images []gpu.Image
	next   int
}

type descriptorPool struct {
	info gpu.DescriptorPoolCreateInfo
	sets []gpu.DescriptorSet
}

// Device is the fake gpu.Device. Host-visible memory is a byte slice,
// command buffers record a list of Commands, and buffer copies run when the
// command buffer is submitted.
type Device struct {
	Info       gpu.DeviceCreateInfo
	Destroyed  bool
	Violations []string

	// Events is the ordered log of acquire, submit and present calls.
	Events []Event
	// Draws counts indexed draws executed by submitted command buffers.
	Draws int
	// Writes holds every descriptor write made through UpdateDescriptorSets.
	Writes []gpu.WriteDescriptorSet
	// Pipelines holds the create info of every pipeline built.
	Pipelines []gpu.GraphicsPipelineCreateInfo
	// RenderPasses holds the create info of every render pass built.
	RenderPasses []gpu.RenderPassCreateInfo
	// Swapchains holds the create info of every swapchain built.
	Swapchains []gpu.SwapchainCreateInfo

	// OutOfDate makes AcquireNextImage and QueuePresent report that the
	// swapchain no longer matches the surface.
	OutOfDate bool

	physical *PhysicalDevice
	next     gpu.Handle
	live     map[gpu.Handle]string
	failures map[string]error
	busy     bool

	buffers     map[gpu.Buffer]*buffer
	memories    map[gpu.DeviceMemory]*memory
	swapchains  map[gpu.Swapchain]*swapchain
	semaphores  map[gpu.Semaphore]bool
	commands    map[gpu.CommandBuffer]*commandBuffer
	descriptors map[gpu.DescriptorPool]*descriptorPool
	queues      map[gpu.Queue]int
}

var _ gpu.Device = (*Device)(nil)

func newDevice(p *PhysicalDevice, info gpu.DeviceCreateInfo) *Device {
	d := &Device{
		Info:        info,
		physical:    p,
		live:        map[gpu.Handle]string{},
		failures:    map[string]error{},
		buffers:     map[gpu.Buffer]*buffer{},
		memories:    map[gpu.DeviceMemory]*memory{},
		swapchains:  map[gpu.Swapchain]*swapchain{},
		semaphores:  map[gpu.Semaphore]bool{},
		commands:    map[gpu.CommandBuffer]*commandBuffer{},
		descriptors: map[gpu.DescriptorPool]*descriptorPool{},
		queues:      map[gpu.Queue]int{},
	}
	for _, q := range info.QueueCreateInfos {
		h := gpu.Queue(d.alloc())
		d.queues[h] = q.QueueFamilyIndex
	}
	return d
}

// FailOn makes the named Device method return err from now on.
func (d *Device) FailOn(method string, err error) {
	d.failures[method] = err
}

// Live returns a sorted description of every object not yet destroyed.
func (d *Device) Live() []string {
	out := make([]string, 0, len(d.live))
	for h, kind := range d.live {
		out = append(out, fmt.Sprintf("%s %d", kind, h))
	}
	sort.Strings(out)
	return out
}

// EventsOf returns the logged events with the given op.
func (d *Device) EventsOf(op string) []Event {
	var out []Event
	for _, e := range d.Events {
		if e.Op == op {
			out = append(out, e)
		}
	}
	return out
}

// Signaled reports whether a semaphore is currently signaled.
func (d *Device) Signaled(s gpu.Semaphore) bool {
	return d.semaphores[s]
}

// Memory returns the backing store of an allocation.
func (d *Device) Memory(m gpu.DeviceMemory) []byte {
	if mem, ok := d.memories[m]; ok {
		return mem.data
	}
	return nil
}

// MemoryTypeOf returns the memory type index a buffer's memory came from.
func (d *Device) MemoryTypeOf(b gpu.Buffer) int {
	buf, ok := d.buffers[b]
	if !ok {
		return -1
	}
	mem, ok := d.memories[buf.memory]
	if !ok {
		return -1
	}
	return mem.typeIndex
}

// Commands returns the commands recorded into a command buffer.
func (d *Device) Commands(cb gpu.CommandBuffer) []Command {
	if c, ok := d.commands[cb]; ok {
		return c.commands
	}
	return nil
}

func (d *Device) alloc() gpu.Handle {
	d.next++
	return d.next
}

func (d *Device) create(kind string) gpu.Handle {
	h := d.alloc()
	d.live[h] = kind
	return h
}

func (d *Device) destroy(kind string, h gpu.Handle) bool {
	if h == 0 {
		d.violate("destroy of null %s", kind)
		return false
	}
	got, ok := d.live[h]
	if !ok || got != kind {
		d.violate("destroy of unknown %s %d", kind, h)
		return false
	}
	if d.busy {
		d.violate("%s %d destroyed while the device has pending work", kind, h)
	}
	delete(d.live, h)
	return true
}

func (d *Device) isLive(kind string, h gpu.Handle) bool {
	return h != 0 && d.live[h] == kind
}

func (d *Device) fail(method string) error {
	if err, ok := d.failures[method]; ok {
		return err
	}
	if d.Destroyed {
		return errors.Newf("%s called on destroyed device", method)
	}
	return nil
}

func (d *Device) violate(format string, args ...interface{}) {
	d.Violations = append(d.Violations, fmt.Sprintf(format, args...))
}

func (d *Device) GetQueue(family, index int) gpu.Queue {
	if index != 0 {
		d.violate("queue index %d requested, only one queue per family", index)
		return 0
	}
	for q, f := range d.queues {
		if f == family {
			return q
		}
	}
	d.violate("queue family %d was not requested at device creation", family)
	return 0
}

func (d *Device) WaitIdle() error {
	if err := d.fail("WaitIdle"); err != nil {
		return err
	}
	d.busy = false
	return nil
}

func (d *Device) Destroy() {
	if d.Destroyed {
		d.violate("device destroyed twice")
		return
	}
	if len(d.live) > 0 {
		d.violate("device destroyed with live objects: %v", d.Live())
	}
	if d.busy {
		d.violate("device destroyed while it has pending work")
	}
	d.Destroyed = true
}

func (d *Device) CreateSwapchain(info gpu.SwapchainCreateInfo) (gpu.Swapchain, error) {
	if err := d.fail("CreateSwapchain"); err != nil {
		return 0, err
	}
	caps := d.physical.Capabilities
	if info.MinImageCount < caps.MinImageCount || (caps.MaxImageCount > 0 && info.MinImageCount > caps.MaxImageCount) {
		return 0, errors.Newf("image count %d outside [%d,%d]", info.MinImageCount, caps.MinImageCount, caps.MaxImageCount)
	}
	if info.ImageSharingMode == gpu.SharingModeConcurrent && len(info.QueueFamilyIndices) < 2 {
		d.violate("concurrent sharing with %d queue families", len(info.QueueFamilyIndices))
	}
	h := gpu.Swapchain(d.create("swapchain"))
	sc := &swapchain{info: info}
	for i := 0; i < info.MinImageCount; i++ {
		sc.images = append(sc.images, gpu.Image(d.alloc()))
	}
	d.swapchains[h] = sc
	d.Swapchains = append(d.Swapchains, info)
	return h, nil
}

func (d *Device) SwapchainImages(h gpu.Swapchain) ([]gpu.Image, error) {
	if err := d.fail("SwapchainImages"); err != nil {
		return nil, err
	}
	sc, ok := d.swapchains[h]
	if !ok {
		return nil, errors.Newf("unknown swapchain %d", h)
	}
	return append([]gpu.Image(nil), sc.images...), nil
}

func (d *Device) AcquireNextImage(h gpu.Swapchain, signal gpu.Semaphore) (int, error) {
	if err := d.fail("AcquireNextImage"); err != nil {
		return 0, err
	}
	if d.OutOfDate {
		return 0, gpu.ErrSwapchainOutOfDate
	}
	sc, ok := d.swapchains[h]
	if !ok || !d.isLive("swapchain", gpu.Handle(h)) {
		return 0, errors.Newf("unknown swapchain %d", h)
	}
	if !d.isLive("semaphore", gpu.Handle(signal)) {
		return 0, errors.Newf("acquire signals unknown semaphore %d", signal)
	}
	if d.semaphores[signal] {
		d.violate("acquire signals semaphore %d which is already signaled", signal)
		return 0, errors.Newf("semaphore %d already signaled", signal)
	}
	index := sc.next
	sc.next = (sc.next + 1) % len(sc.images)
	d.semaphores[signal] = true
	d.Events = append(d.Events, Event{
		Op:         OpAcquire,
		ImageIndex: index,
		Signal:     []gpu.Semaphore{signal},
	})
	return index, nil
}

func (d *Device) QueuePresent(queue gpu.Queue, info gpu.PresentInfo) error {
	if err := d.fail("QueuePresent"); err != nil {
		return err
	}
	if _, ok := d.queues[queue]; !ok {
		return errors.Newf("unknown queue %d", queue)
	}
	if len(info.Swapchains) != len(info.ImageIndices) {
		return errors.New("present swapchain and image index counts differ")
	}
	if err := d.consume(OpPresent, info.WaitSemaphores); err != nil {
		return err
	}
	for i, h := range info.Swapchains {
		sc, ok := d.swapchains[h]
		if !ok {
			return errors.Newf("present to unknown swapchain %d", h)
		}
		if info.ImageIndices[i] < 0 || info.ImageIndices[i] >= len(sc.images) {
			return errors.Newf("present of image %d out of range", info.ImageIndices[i])
		}
	}
	d.busy = true
	index := -1
	if len(info.ImageIndices) > 0 {
		index = info.ImageIndices[0]
	}
	d.Events = append(d.Events, Event{
		Op:         OpPresent,
		Queue:      queue,
		ImageIndex: index,
		Wait:       append([]gpu.Semaphore(nil), info.WaitSemaphores...),
	})
	if d.OutOfDate {
		return gpu.ErrSwapchainOutOfDate
	}
	return nil
}

// consume checks that every semaphore is signaled and unsignals it.
func (d *Device) consume(op string, sems []gpu.Semaphore) error {
	for _, s := range sems {
		if !d.isLive("semaphore", gpu.Handle(s)) {
			return errors.Newf("%s waits on unknown semaphore %d", op, s)
		}
		if !d.semaphores[s] {
			d.violate("%s waits on semaphore %d that no operation will signal", op, s)
			return errors.Newf("%s waits on unsignaled semaphore %d", op, s)
		}
	}
	for _, s := range sems {
		d.semaphores[s] = false
	}
	return nil
}

func (d *Device) DestroySwapchain(h gpu.Swapchain) {
	if d.destroy("swapchain", gpu.Handle(h)) {
		delete(d.swapchains, h)
	}
}

func (d *Device) CreateImageView(info gpu.ImageViewCreateInfo) (gpu.ImageView, error) {
	if err := d.fail("CreateImageView"); err != nil {
		return 0, err
	}
	if !info.Image.Initialized() {
		return 0, errors.New("image view of null image")
	}
	return gpu.ImageView(d.create("image view")), nil
}

func (d *Device) DestroyImageView(h gpu.ImageView) {
	d.destroy("image view", gpu.Handle(h))
}

func (d *Device) CreateRenderPass(info gpu.RenderPassCreateInfo) (gpu.RenderPass, error) {
	if err := d.fail("CreateRenderPass"); err != nil {
		return 0, err
	}
	if len(info.Subpasses) == 0 {
		return 0, errors.New("render pass without subpasses")
	}
	d.RenderPasses = append(d.RenderPasses, info)
	return gpu.RenderPass(d.create("render pass")), nil
}

func (d *Device) DestroyRenderPass(h gpu.RenderPass) {
	d.destroy("render pass", gpu.Handle(h))
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferCreateInfo) (gpu.Framebuffer, error) {
	if err := d.fail("CreateFramebuffer"); err != nil {
		return 0, err
	}
	if !d.isLive("render pass", gpu.Handle(info.RenderPass)) {
		return 0, errors.Newf("framebuffer for unknown render pass %d", info.RenderPass)
	}
	for _, v := range info.Attachments {
		if !d.isLive("image view", gpu.Handle(v)) {
			return 0, errors.Newf("framebuffer attachment %d is not a live image view", v)
		}
	}
	return gpu.Framebuffer(d.create("framebuffer")), nil
}

func (d *Device) DestroyFramebuffer(h gpu.Framebuffer) {
	d.destroy("framebuffer", gpu.Handle(h))
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, error) {
	if err := d.fail("CreateShaderModule"); err != nil {
		return 0, err
	}
	if len(code) == 0 {
		return 0, errors.New("empty shader code")
	}
	return gpu.ShaderModule(d.create("shader module")), nil
}

func (d *Device) DestroyShaderModule(h gpu.ShaderModule) {
	d.destroy("shader module", gpu.Handle(h))
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorSetLayoutBinding) (gpu.DescriptorSetLayout, error) {
	if err := d.fail("CreateDescriptorSetLayout"); err != nil {
		return 0, err
	}
	return gpu.DescriptorSetLayout(d.create("descriptor set layout")), nil
}

func (d *Device) DestroyDescriptorSetLayout(h gpu.DescriptorSetLayout) {
	d.destroy("descriptor set layout", gpu.Handle(h))
}

func (d *Device) CreatePipelineLayout(info gpu.PipelineLayoutCreateInfo) (gpu.PipelineLayout, error) {
	if err := d.fail("CreatePipelineLayout"); err != nil {
		return 0, err
	}
	for _, l := range info.SetLayouts {
		if !d.isLive("descriptor set layout", gpu.Handle(l)) {
			return 0, errors.Newf("unknown descriptor set layout %d", l)
		}
	}
	return gpu.PipelineLayout(d.create("pipeline layout")), nil
}

func (d *Device) DestroyPipelineLayout(h gpu.PipelineLayout) {
	d.destroy("pipeline layout", gpu.Handle(h))
}

func (d *Device) CreateGraphicsPipeline(info gpu.GraphicsPipelineCreateInfo) (gpu.Pipeline, error) {
	if err := d.fail("CreateGraphicsPipeline"); err != nil {
		return 0, err
	}
	for _, s := range info.Stages {
		if !d.isLive("shader module", gpu.Handle(s.Module)) {
			return 0, errors.Newf("stage uses unknown shader module %d", s.Module)
		}
	}
	if !d.isLive("pipeline layout", gpu.Handle(info.Layout)) {
		return 0, errors.Newf("unknown pipeline layout %d", info.Layout)
	}
	if !d.isLive("render pass", gpu.Handle(info.RenderPass)) {
		return 0, errors.Newf("unknown render pass %d", info.RenderPass)
	}
	d.Pipelines = append(d.Pipelines, info)
	return gpu.Pipeline(d.create("pipeline")), nil
}

func (d *Device) DestroyPipeline(h gpu.Pipeline) {
	d.destroy("pipeline", gpu.Handle(h))
}

func (d *Device) CreateBuffer(info gpu.BufferCreateInfo) (gpu.Buffer, error) {
	if err := d.fail("CreateBuffer"); err != nil {
		return 0, err
	}
	if info.Size <= 0 {
		return 0, errors.Newf("buffer size %d", info.Size)
	}
	h := gpu.Buffer(d.create("buffer"))
	d.buffers[h] = &buffer{info: info}
	return h, nil
}

func (d *Device) DestroyBuffer(h gpu.Buffer) {
	if d.destroy("buffer", gpu.Handle(h)) {
		delete(d.buffers, h)
	}
}

const bufferAlignment = 256

func (d *Device) BufferMemoryRequirements(h gpu.Buffer) gpu.MemoryRequirements {
	buf, ok := d.buffers[h]
	if !ok {
		d.violate("memory requirements of unknown buffer %d", h)
		return gpu.MemoryRequirements{}
	}
	bits := d.physical.MemoryTypeBits
	if bits == 0 {
		bits = uint32(1)<<uint(len(d.physical.Memory.MemoryTypes)) - 1
	}
	size := (buf.info.Size + bufferAlignment - 1) / bufferAlignment * bufferAlignment
	return gpu.MemoryRequirements{
		Size:           size,
		Alignment:      bufferAlignment,
		MemoryTypeBits: bits,
	}
}

func (d *Device) AllocateMemory(size int, memoryTypeIndex int) (gpu.DeviceMemory, error) {
	if err := d.fail("AllocateMemory"); err != nil {
		return 0, err
	}
	if memoryTypeIndex < 0 || memoryTypeIndex >= len(d.physical.Memory.MemoryTypes) {
		return 0, errors.Newf("memory type %d out of range", memoryTypeIndex)
	}
	h := gpu.DeviceMemory(d.create("memory"))
	d.memories[h] = &memory{data: make([]byte, size), typeIndex: memoryTypeIndex}
	return h, nil
}

func (d *Device) FreeMemory(h gpu.DeviceMemory) {
	for b, buf := range d.buffers {
		if buf.memory == h {
			d.violate("memory %d freed while buffer %d is bound to it", h, b)
		}
	}
	if d.destroy("memory", gpu.Handle(h)) {
		delete(d.memories, h)
	}
}

func (d *Device) BindBufferMemory(b gpu.Buffer, m gpu.DeviceMemory, offset int) error {
	if err := d.fail("BindBufferMemory"); err != nil {
		return err
	}
	buf, ok := d.buffers[b]
	if !ok {
		return errors.Newf("bind of unknown buffer %d", b)
	}
	mem, ok := d.memories[m]
	if !ok {
		return errors.Newf("bind of unknown memory %d", m)
	}
	if buf.memory != 0 {
		d.violate("buffer %d bound twice", b)
		return errors.Newf("buffer %d already bound", b)
	}
	if offset+buf.info.Size > len(mem.data) {
		return errors.Newf("buffer %d does not fit in memory %d at offset %d", b, m, offset)
	}
	if offset != 0 {
		d.violate("buffer %d bound at offset %d", b, offset)
	}
	buf.memory = m
	return nil
}

func (d *Device) MapMemory(m gpu.DeviceMemory, offset, size int) ([]byte, error) {
	if err := d.fail("MapMemory"); err != nil {
		return nil, err
	}
	mem, ok := d.memories[m]
	if !ok {
		return nil, errors.Newf("map of unknown memory %d", m)
	}
	flags := d.physical.Memory.MemoryTypes[mem.typeIndex].PropertyFlags
	if flags&gpu.MemoryPropertyHostVisible == 0 {
		d.violate("map of memory %d which is not host visible (%s)", m, flags)
		return nil, errors.Newf("memory %d is not host visible", m)
	}
	if mem.mapped {
		return nil, errors.Newf("memory %d already mapped", m)
	}
	if offset < 0 || offset+size > len(mem.data) {
		return nil, errors.Newf("map range [%d,%d) out of bounds", offset, offset+size)
	}
	mem.mapped = true
	return mem.data[offset : offset+size : offset+size], nil
}

func (d *Device) UnmapMemory(m gpu.DeviceMemory) {
	mem, ok := d.memories[m]
	if !ok || !mem.mapped {
		d.violate("unmap of memory %d which is not mapped", m)
		return
	}
	mem.mapped = false
}

func (d *Device) CreateDescriptorPool(info gpu.DescriptorPoolCreateInfo) (gpu.DescriptorPool, error) {
	if err := d.fail("CreateDescriptorPool"); err != nil {
		return 0, err
	}
	h := gpu.DescriptorPool(d.create("descriptor pool"))
	d.descriptors[h] = &descriptorPool{info: info}
	return h, nil
}

func (d *Device) DestroyDescriptorPool(h gpu.DescriptorPool) {
	if d.destroy("descriptor pool", gpu.Handle(h)) {
		delete(d.descriptors, h)
	}
}

func (d *Device) AllocateDescriptorSets(h gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	if err := d.fail("AllocateDescriptorSets"); err != nil {
		return nil, err
	}
	pool, ok := d.descriptors[h]
	if !ok {
		return nil, errors.Newf("unknown descriptor pool %d", h)
	}
	if len(pool.sets)+len(layouts) > pool.info.MaxSets {
		return nil, errors.Newf("descriptor pool %d exhausted: %d sets of %d", h, len(pool.sets)+len(layouts), pool.info.MaxSets)
	}
	out := make([]gpu.DescriptorSet, 0, len(layouts))
	for _, l := range layouts {
		if !d.isLive("descriptor set layout", gpu.Handle(l)) {
			return nil, errors.Newf("unknown descriptor set layout %d", l)
		}
		s := gpu.DescriptorSet(d.alloc())
		pool.sets = append(pool.sets, s)
		out = append(out, s)
	}
	return out, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.WriteDescriptorSet) error {
	if err := d.fail("UpdateDescriptorSets"); err != nil {
		return err
	}
	for _, w := range writes {
		for _, bi := range w.BufferInfo {
			buf, ok := d.buffers[bi.Buffer]
			if !ok {
				return errors.Newf("descriptor write references unknown buffer %d", bi.Buffer)
			}
			if bi.Offset+bi.Range > buf.info.Size {
				return errors.Newf("descriptor range [%d,%d) exceeds buffer size %d", bi.Offset, bi.Offset+bi.Range, buf.info.Size)
			}
		}
		d.Writes = append(d.Writes, w)
	}
	return nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	if err := d.fail("CreateSemaphore"); err != nil {
		return 0, err
	}
	h := gpu.Semaphore(d.create("semaphore"))
	d.semaphores[h] = false
	return h, nil
}

func (d *Device) DestroySemaphore(h gpu.Semaphore) {
	if d.destroy("semaphore", gpu.Handle(h)) {
		delete(d.semaphores, h)
	}
}
