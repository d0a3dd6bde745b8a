package mcpbridge

import (
	"context"
	"fmt"

	"github.com/cargoshipper/cargoshipper/internal/constraints"
	"github.com/cargoshipper/cargoshipper/internal/docker"
	"github.com/cargoshipper/cargoshipper/internal/validate"
	"github.com/mark3labs/mcp-go/mcp"
)

// DockerBackend is the container engine surface the docker_* tools use.
type DockerBackend interface {
	Run(ctx context.Context, req docker.RunRequest) (*docker.RunResult, error)
	ListContainers(ctx context.Context, all bool, filters map[string]string) ([]docker.ContainerView, error)
	Inspect(ctx context.Context, id string) (*docker.ContainerView, error)
	Stop(ctx context.Context, id string, timeout int) error
	Start(ctx context.Context, id string) error
	Remove(ctx context.Context, id string, force bool) error
	Logs(ctx context.Context, id string, tail int, timestamps bool) (string, error)
	ListImages(ctx context.Context, all bool) ([]docker.ImageView, error)
	Pull(ctx context.Context, ref string) (*docker.PullResult, error)
	Info(ctx context.Context) (*docker.SystemView, error)
}

// RegisterDocker adds the docker_* tools.
func (r *ToolRegistry) RegisterDocker(d DockerBackend) {
	const b = constraints.BackendDocker

	r.add(mcp.NewTool("docker_run_container",
		mcp.WithDescription("Create and start a container from an image."),
		mcp.WithString("image", mcp.Required(), mcp.Description("Image reference, e.g. nginx:1.27")),
		mcp.WithString("name", mcp.Description("Container name")),
		mcp.WithString("command", mcp.Description("Command to run, split like a shell would")),
		mcp.WithObject("ports", mcp.Description(`Port map {"80": "8080"} from container port (optionally "/udp") to host port`)),
		mcp.WithObject("environment", mcp.Description("Environment variables")),
		mcp.WithObject("volumes", mcp.Description("Bind mounts {host_path: container_path}")),
		mcp.WithBoolean("detach", mcp.DefaultBool(true), mcp.Description("Return immediately instead of waiting for exit")),
		mcp.WithBoolean("remove", mcp.DefaultBool(false), mcp.Description("Remove the container when it exits")),
		mcp.WithDestructiveHintAnnotation(false),
	), b, "run_container", func(ctx context.Context, a args) (any, error) {
		if err := a.require("image"); err != nil {
			return nil, err
		}
		req := docker.RunRequest{
			Image:   a.str("image"),
			Name:    a.str("name"),
			Command: a.str("command"),
			Detach:  a.boolean("detach", true),
			Remove:  a.boolean("remove", false),
		}
		if err := validate.ImageName(req.Image); err != nil {
			return nil, err
		}
		if req.Name != "" {
			if err := validate.ContainerName(req.Name); err != nil {
				return nil, err
			}
		}
		var err error
		if req.Ports, err = a.stringMap("ports"); err != nil {
			return nil, err
		}
		for _, host := range req.Ports {
			if _, err := validate.Port(host); err != nil {
				return nil, err
			}
		}
		if req.Environment, err = a.stringMap("environment"); err != nil {
			return nil, err
		}
		if req.Volumes, err = a.stringMap("volumes"); err != nil {
			return nil, err
		}
		return d.Run(ctx, req)
	})

	r.add(mcp.NewTool("docker_list_containers",
		mcp.WithDescription("List containers."),
		mcp.WithBoolean("all_containers", mcp.DefaultBool(true), mcp.Description("Include stopped containers")),
		mcp.WithObject("filters", mcp.Description(`Engine filters, e.g. {"status": "running", "label": "app=web"}`)),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "list_containers", func(ctx context.Context, a args) (any, error) {
		filters, err := a.stringMap("filters")
		if err != nil {
			return nil, err
		}
		list, err := d.ListContainers(ctx, a.boolean("all_containers", true), filters)
		if err != nil {
			return nil, err
		}
		return map[string]any{"containers": list, "count": len(list)}, nil
	})

	r.add(mcp.NewTool("docker_stop_container",
		mcp.WithDescription("Stop a running container."),
		mcp.WithString("container_id", mcp.Required(), mcp.Description("Container ID or name")),
		mcp.WithNumber("timeout", mcp.DefaultNumber(10), mcp.Description("Seconds to wait before killing")),
	), b, "stop_container", func(ctx context.Context, a args) (any, error) {
		id := a.str("container_id")
		if err := validate.ContainerRef(id); err != nil {
			return nil, err
		}
		timeout, err := a.integer("timeout", 10)
		if err != nil {
			return nil, err
		}
		if err := validate.Range("timeout", timeout, 0, 3600); err != nil {
			return nil, err
		}
		if err := d.Stop(ctx, id, timeout); err != nil {
			return nil, err
		}
		return map[string]any{"container_id": id, "status": "stopped"}, nil
	})

	r.add(mcp.NewTool("docker_start_container",
		mcp.WithDescription("Start a stopped container."),
		mcp.WithString("container_id", mcp.Required(), mcp.Description("Container ID or name")),
	), b, "start_container", func(ctx context.Context, a args) (any, error) {
		id := a.str("container_id")
		if err := validate.ContainerRef(id); err != nil {
			return nil, err
		}
		if err := d.Start(ctx, id); err != nil {
			return nil, err
		}
		return map[string]any{"container_id": id, "status": "started"}, nil
	})

	r.add(mcp.NewTool("docker_remove_container",
		mcp.WithDescription("Remove a container."),
		mcp.WithString("container_id", mcp.Required(), mcp.Description("Container ID or name")),
		mcp.WithBoolean("force", mcp.DefaultBool(false), mcp.Description("Kill the container first if it is running")),
		mcp.WithDestructiveHintAnnotation(true),
	), b, "remove_container", func(ctx context.Context, a args) (any, error) {
		id := a.str("container_id")
		if err := validate.ContainerRef(id); err != nil {
			return nil, err
		}
		force := a.boolean("force", false)
		if err := d.Remove(ctx, id, force); err != nil {
			return nil, err
		}
		return map[string]any{"container_id": id, "status": "removed", "force": force}, nil
	})

	r.add(mcp.NewTool("docker_get_logs",
		mcp.WithDescription("Fetch the most recent log lines of a container. Streaming is not supported; follow is ignored."),
		mcp.WithString("container_id", mcp.Required(), mcp.Description("Container ID or name")),
		mcp.WithNumber("tail", mcp.DefaultNumber(100), mcp.Description("Number of lines from the end")),
		mcp.WithBoolean("timestamps", mcp.DefaultBool(true), mcp.Description("Prefix lines with timestamps")),
		mcp.WithBoolean("follow", mcp.DefaultBool(false), mcp.Description("Accepted for compatibility; ignored")),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "get_logs", func(ctx context.Context, a args) (any, error) {
		id := a.str("container_id")
		if err := validate.ContainerRef(id); err != nil {
			return nil, err
		}
		tail, err := a.integer("tail", 100)
		if err != nil {
			return nil, err
		}
		if err := validate.Range("tail", tail, 1, 10000); err != nil {
			return nil, err
		}
		logs, err := d.Logs(ctx, id, tail, a.boolean("timestamps", true))
		if err != nil {
			return nil, err
		}
		return map[string]any{"container_id": id, "tail": tail, "logs": logs}, nil
	})

	r.add(mcp.NewTool("docker_list_images",
		mcp.WithDescription("List local images."),
		mcp.WithBoolean("all", mcp.DefaultBool(false), mcp.Description("Include intermediate images")),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "list_images", func(ctx context.Context, a args) (any, error) {
		list, err := d.ListImages(ctx, a.boolean("all", false))
		if err != nil {
			return nil, err
		}
		return map[string]any{"images": list, "count": len(list)}, nil
	})

	r.add(mcp.NewTool("docker_pull_image",
		mcp.WithDescription("Pull an image. Registry credentials come from configuration, then the docker config file."),
		mcp.WithString("image", mcp.Required(), mcp.Description("Image reference")),
		mcp.WithString("tag", mcp.Description("Tag appended when image has none")),
	), b, "pull_image", func(ctx context.Context, a args) (any, error) {
		if err := a.require("image"); err != nil {
			return nil, err
		}
		ref := a.str("image")
		if tag := a.str("tag"); tag != "" {
			ref = fmt.Sprintf("%s:%s", ref, tag)
		}
		if err := validate.ImageName(ref); err != nil {
			return nil, err
		}
		return d.Pull(ctx, ref)
	})

	r.add(mcp.NewTool("docker_system_info",
		mcp.WithDescription("Describe the container engine host."),
		mcp.WithReadOnlyHintAnnotation(true),
	), b, "system_info", func(ctx context.Context, _ args) (any, error) {
		return d.Info(ctx)
	})
}
