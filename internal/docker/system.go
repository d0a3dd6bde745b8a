package docker

import (
	"context"
	"fmt"

	"github.com/docker/go-units"
)

// SystemView summarizes the engine host.
type SystemView struct {
	ServerVersion     string `json:"server_version"`
	OperatingSystem   string `json:"operating_system"`
	OSType            string `json:"os_type"`
	Architecture      string `json:"architecture"`
	KernelVersion     string `json:"kernel_version"`
	CPUs              int    `json:"cpus"`
	Memory            int64  `json:"memory"`
	MemoryText        string `json:"memory_human"`
	StorageDriver     string `json:"storage_driver"`
	Containers        int    `json:"containers"`
	ContainersRunning int    `json:"containers_running"`
	ContainersPaused  int    `json:"containers_paused"`
	ContainersStopped int    `json:"containers_stopped"`
	Images            int    `json:"images"`
	Name              string `json:"name"`
}

// Info describes the engine host.
func (c *Client) Info(ctx context.Context) (*SystemView, error) {
	info, err := c.api.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("docker info: %w", err)
	}
	return &SystemView{
		ServerVersion:     info.ServerVersion,
		OperatingSystem:   info.OperatingSystem,
		OSType:            info.OSType,
		Architecture:      info.Architecture,
		KernelVersion:     info.KernelVersion,
		CPUs:              info.NCPU,
		Memory:            info.MemTotal,
		MemoryText:        units.BytesSize(float64(info.MemTotal)),
		StorageDriver:     info.Driver,
		Containers:        info.Containers,
		ContainersRunning: info.ContainersRunning,
		ContainersPaused:  info.ContainersPaused,
		ContainersStopped: info.ContainersStopped,
		Images:            info.Images,
		Name:              info.Name,
	}, nil
}
