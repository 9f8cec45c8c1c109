package vulkan

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/grafo/engine/core"
)

// RendererConfig drives the per-thread context (pool sizing and shader
// hot-reload) and the swapchain (frames in flight). AppName,
// EnableValidation, ScratchBufferSize and DefaultClearColor are not read in
// this package. Loaded from TOML or built from defaults.
type RendererConfig struct {
	AppName          string `toml:"app_name"`
	EnableValidation bool   `toml:"enable_validation"`

	MaxFramesInFlight  uint8  `toml:"max_frames_in_flight"`
	CommandBufferCount int    `toml:"command_buffer_count"`
	DescriptorPoolSize uint32 `toml:"descriptor_pool_size"`
	ScratchBufferSize  uint64 `toml:"scratch_buffer_size"`

	DefaultClearColor [4]float32 `toml:"default_clear_color"`

	ShaderDir    string `toml:"shader_dir"`
	WatchShaders bool   `toml:"watch_shaders"`
}

func DefaultRendererConfig() *RendererConfig {
	return &RendererConfig{
		AppName:            "grafo",
		EnableValidation:   false,
		MaxFramesInFlight:  2,
		CommandBufferCount: 16,
		DescriptorPoolSize: 1024,
		ScratchBufferSize:  1 << 20,
		DefaultClearColor:  [4]float32{0.0, 0.0, 0.2, 1.0},
		ShaderDir:          "shaders",
		WatchShaders:       false,
	}
}

// LoadRendererConfig reads a TOML config file; fields left out keep their
// defaults.
func LoadRendererConfig(path string) (*RendererConfig, error) {
	config := DefaultRendererConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		core.LogError("failed to read renderer config %s: %s", path, err.Error())
		return nil, err
	}
	if err := toml.Unmarshal(data, config); err != nil {
		core.LogError("failed to parse renderer config %s: %s", path, err.Error())
		return nil, err
	}
	return config, nil
}
