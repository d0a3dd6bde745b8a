package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/google/shlex"
	"go.uber.org/zap"
)

// RunRequest describes a container to create and start.
type RunRequest struct {
	Image       string
	Name        string
	Command     string
	Ports       map[string]string // container port ("80" or "80/udp") -> host port
	Environment map[string]string
	Volumes     map[string]string // host path -> container path
	Detach      bool
	Remove      bool
}

// ContainerView is the flattened form of a container returned to callers.
type ContainerView struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Image   string            `json:"image"`
	Status  string            `json:"status"`
	State   string            `json:"state,omitempty"`
	Created string            `json:"created,omitempty"`
	Ports   []string          `json:"ports"`
	Labels  map[string]string `json:"labels,omitempty"`
}

// RunResult is returned by Run.
type RunResult struct {
	Container ContainerView `json:"container"`
	Warnings  []string      `json:"warnings,omitempty"`
	Output    string        `json:"output,omitempty"`
}

// Run creates and starts a container. When req.Detach is false it waits for
// the container to exit and returns its output.
func (c *Client) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	cfg := &container.Config{Image: req.Image}
	if req.Command != "" {
		args, err := shlex.Split(req.Command)
		if err != nil {
			return nil, fmt.Errorf("parse command: %w", err)
		}
		cfg.Cmd = args
	}
	for k, v := range req.Environment {
		cfg.Env = append(cfg.Env, k+"="+v)
	}

	host := &container.HostConfig{AutoRemove: req.Remove}
	if len(req.Ports) > 0 {
		exposed, bindings, err := portBindings(req.Ports)
		if err != nil {
			return nil, err
		}
		cfg.ExposedPorts = exposed
		host.PortBindings = bindings
	}
	for hostPath, containerPath := range req.Volumes {
		host.Binds = append(host.Binds, hostPath+":"+containerPath)
	}

	created, err := c.api.ContainerCreate(ctx, cfg, host, nil, nil, req.Name)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	if err := c.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container %s: %w", shortID(created.ID), err)
	}
	c.logger.Info("docker: container started",
		zap.String("id", shortID(created.ID)),
		zap.String("image", req.Image),
	)

	res := &RunResult{Warnings: created.Warnings}
	if !req.Detach {
		out, err := c.waitAndCollect(ctx, created.ID, req.Remove)
		if err != nil {
			return nil, err
		}
		res.Output = out
	}

	if view, err := c.Inspect(ctx, created.ID); err == nil {
		res.Container = *view
	} else {
		res.Container = ContainerView{ID: shortID(created.ID), Name: req.Name, Image: req.Image, Status: "started", Ports: []string{}}
	}
	return res, nil
}

// waitAndCollect blocks until the container stops and returns its logs.
// Logs are attached before waiting so an auto-removed container's output is
// not lost.
func (c *Client) waitAndCollect(ctx context.Context, id string, autoRemove bool) (string, error) {
	var logs io.ReadCloser
	var err error
	if autoRemove {
		logs, err = c.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true, Follow: true})
		if err != nil {
			return "", fmt.Errorf("attach logs: %w", err)
		}
		defer logs.Close()
	}

	statusCh, errCh := c.api.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("wait for container: %w", err)
		}
	case <-statusCh:
	}

	if logs == nil {
		logs, err = c.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
		if err != nil {
			return "", fmt.Errorf("read logs: %w", err)
		}
		defer logs.Close()
	}
	return demux(logs, false)
}

func portBindings(ports map[string]string) (nat.PortSet, nat.PortMap, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for containerPort, hostPort := range ports {
		proto := "tcp"
		portNum := containerPort
		if p, pr, ok := strings.Cut(containerPort, "/"); ok {
			portNum, proto = p, pr
		}
		port, err := nat.NewPort(proto, portNum)
		if err != nil {
			return nil, nil, fmt.Errorf("container port %q: %w", containerPort, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{HostPort: hostPort})
	}
	return exposed, bindings, nil
}

// ListContainers returns containers, optionally including stopped ones.
// Filters use the engine's syntax, e.g. {"status": "running"}.
func (c *Client) ListContainers(ctx context.Context, all bool, filterMap map[string]string) ([]ContainerView, error) {
	args := filters.NewArgs()
	for k, v := range filterMap {
		args.Add(k, v)
	}
	list, err := c.api.ContainerList(ctx, container.ListOptions{All: all, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]ContainerView, 0, len(list))
	for _, ct := range list {
		v := ContainerView{
			ID:      shortID(ct.ID),
			Image:   ct.Image,
			Status:  ct.Status,
			State:   ct.State,
			Created: time.Unix(ct.Created, 0).UTC().Format(time.RFC3339),
			Ports:   []string{},
			Labels:  ct.Labels,
		}
		if len(ct.Names) > 0 {
			v.Name = strings.TrimPrefix(ct.Names[0], "/")
		}
		for _, p := range ct.Ports {
			if p.PublicPort != 0 {
				v.Ports = append(v.Ports, fmt.Sprintf("%s:%d->%d/%s", p.IP, p.PublicPort, p.PrivatePort, p.Type))
			} else {
				v.Ports = append(v.Ports, fmt.Sprintf("%d/%s", p.PrivatePort, p.Type))
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// Inspect returns details for one container.
func (c *Client) Inspect(ctx context.Context, id string) (*ContainerView, error) {
	info, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inspect container %s: %w", id, err)
	}
	v := &ContainerView{Ports: []string{}}
	if info.ContainerJSONBase != nil {
		v.ID = shortID(info.ID)
		v.Name = strings.TrimPrefix(info.Name, "/")
		v.Created = info.Created
		if info.State != nil {
			v.Status = info.State.Status
			v.State = info.State.Status
		}
	}
	if info.Config != nil {
		v.Image = info.Config.Image
		v.Labels = info.Config.Labels
	}
	if info.NetworkSettings != nil {
		for port, binds := range info.NetworkSettings.Ports {
			if len(binds) == 0 {
				v.Ports = append(v.Ports, string(port))
				continue
			}
			for _, b := range binds {
				v.Ports = append(v.Ports, fmt.Sprintf("%s:%s->%s", b.HostIP, b.HostPort, port))
			}
		}
	}
	return v, nil
}

// Stop stops a container, killing it after timeout seconds.
func (c *Client) Stop(ctx context.Context, id string, timeout int) error {
	if err := c.api.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("stop container %s: %w", id, err)
	}
	return nil
}

// Start starts a stopped container.
func (c *Client) Start(ctx context.Context, id string) error {
	if err := c.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", id, err)
	}
	return nil
}

// Remove deletes a container.
func (c *Client) Remove(ctx context.Context, id string, force bool) error {
	if err := c.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}); err != nil {
		return fmt.Errorf("remove container %s: %w", id, err)
	}
	return nil
}

// Logs returns the last tail lines of a container's output.
func (c *Client) Logs(ctx context.Context, id string, tail int, timestamps bool) (string, error) {
	info, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("inspect container %s: %w", id, err)
	}
	tty := info.Config != nil && info.Config.Tty

	opts := container.LogsOptions{ShowStdout: true, ShowStderr: true, Timestamps: timestamps}
	if tail > 0 {
		opts.Tail = strconv.Itoa(tail)
	}
	rc, err := c.api.ContainerLogs(ctx, id, opts)
	if err != nil {
		return "", fmt.Errorf("read logs %s: %w", id, err)
	}
	defer rc.Close()
	return demux(rc, tty)
}

// demux splits the engine's multiplexed log stream. TTY containers send a
// raw stream instead.
func demux(r io.Reader, tty bool) (string, error) {
	if tty {
		b, err := io.ReadAll(r)
		return string(b), err
	}
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, r); err != nil {
		return "", fmt.Errorf("demultiplex logs: %w", err)
	}
	return stdout.String() + stderr.String(), nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
