package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/PravicaInc/walletify-go/pkg/hub"
)

// DeleteFile removes path from the signed-in user's hub and forgets its
// etag. The delete is guarded by If-Match when an etag is on record.
func (s *Storage) DeleteFile(ctx context.Context, path string, opts ...DeleteFileOption) error {
	var o DeleteFileOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := s.GetOrSetLocalHubConnection(ctx)
	if err != nil {
		return err
	}
	var etag string
	if !o.DangerouslyIgnoreEtag {
		data, _, err := s.userData(ctx)
		if err != nil {
			return err
		}
		etag, _ = data.Etag(path)
	}

	err = s.withHubRetry(ctx, "delete "+path, cfg, func(ctx context.Context, cfg *hub.Config) error {
		if o.WasSigned {
			if err := s.hub.Delete(ctx, cfg, hub.DeleteRequest{Path: path + SignatureSuffix}); err != nil {
				return err
			}
		}
		return s.hub.Delete(ctx, cfg, hub.DeleteRequest{Path: path, Etag: etag})
	})
	if err != nil {
		return err
	}
	zap.L().Debug("File deleted", zap.String("path", path))
	return s.commitEtag(ctx, path, "")
}

// ListFiles calls fn with every file name in the signed-in user's bucket
// until fn returns false. It returns how many names fn was given.
func (s *Storage) ListFiles(ctx context.Context, fn func(name string) bool) (int, error) {
	cfg, err := s.GetOrSetLocalHubConnection(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	var page *string
	for {
		var resp *hub.ListResponse
		err := s.withHubRetry(ctx, "list-files", cfg, func(ctx context.Context, c *hub.Config) error {
			r, err := s.hub.List(ctx, c, page)
			if err != nil {
				return err
			}
			resp, cfg = r, c
			return nil
		})
		if err != nil {
			return count, err
		}
		for _, name := range resp.Entries {
			count++
			if !fn(name) {
				return count, nil
			}
		}
		if resp.Page == nil || *resp.Page == "" {
			return count, nil
		}
		page = resp.Page
	}
}
