package docker

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/go-units"
	"go.uber.org/zap"
)

// ImageView is the flattened form of an image.
type ImageView struct {
	ID       string   `json:"id"`
	Tags     []string `json:"tags"`
	Size     int64    `json:"size"`
	SizeText string   `json:"size_human"`
	Created  string   `json:"created"`
}

// ListImages returns local images, optionally including intermediate layers.
func (c *Client) ListImages(ctx context.Context, all bool) ([]ImageView, error) {
	list, err := c.api.ImageList(ctx, image.ListOptions{All: all})
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	out := make([]ImageView, 0, len(list))
	for _, img := range list {
		tags := img.RepoTags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, ImageView{
			ID:       shortImageID(img.ID),
			Tags:     tags,
			Size:     img.Size,
			SizeText: units.HumanSize(float64(img.Size)),
			Created:  time.Unix(img.Created, 0).UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

// PullResult is returned by Pull.
type PullResult struct {
	Image    string   `json:"image"`
	ID       string   `json:"id,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	SizeText string   `json:"size_human,omitempty"`
	Auth     string   `json:"auth"`
}

// Pull fetches ref from its registry, authenticating when credentials are
// configured for that registry.
func (c *Client) Pull(ctx context.Context, ref string) (*PullResult, error) {
	opts := image.PullOptions{}
	authSource := "anonymous"

	authCfg, source, err := c.auth.Resolve(ref)
	if err != nil {
		c.logger.Warn("docker: registry auth lookup failed", zap.String("image", ref), zap.Error(err))
	} else if authCfg != nil {
		encoded, err := registry.EncodeAuthConfig(*authCfg)
		if err != nil {
			return nil, fmt.Errorf("encode registry auth: %w", err)
		}
		opts.RegistryAuth = encoded
		authSource = source
	}

	rc, err := c.api.ImagePull(ctx, ref, opts)
	if err != nil {
		return nil, fmt.Errorf("pull %s: %w", ref, err)
	}
	defer rc.Close()

	// Progress is discarded; a pull error arrives as a message on the stream.
	if err := jsonmessage.DisplayJSONMessagesStream(rc, io.Discard, 0, false, nil); err != nil {
		return nil, fmt.Errorf("pull %s: %w", ref, err)
	}
	c.logger.Info("docker: image pulled", zap.String("image", ref), zap.String("auth", authSource))

	res := &PullResult{Image: ref, Auth: authSource}
	if info, _, err := c.api.ImageInspectWithRaw(ctx, ref); err == nil {
		res.ID = shortImageID(info.ID)
		res.Tags = info.RepoTags
		res.SizeText = units.HumanSize(float64(info.Size))
	}
	return res, nil
}

func shortImageID(id string) string {
	return shortID(strings.TrimPrefix(id, "sha256:"))
}
