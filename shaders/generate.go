// Package shaders holds the GLSL sources of the renderer's shaders. The
// SPIR-V binaries are built with glslc from the Vulkan SDK.
package shaders

//go:generate glslc shader.vert -o vert.spv
//go:generate glslc flat.vert -o flat_vert.spv
//go:generate glslc shader.frag -o frag.spv
