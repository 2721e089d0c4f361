package cloud

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/spdl/spdl/internal/http"
	"github.com/spdl/spdl/internal/localfs"
	"github.com/spdl/spdl/internal/logging"
	"github.com/spdl/spdl/internal/progress"
)

// PublishResult counts what Publish did.
type PublishResult struct {
	Uploaded int
	Failed   int
	Keys     []string
}

// PublishOptions configures Publish. Only Uploader and Target are required.
type PublishOptions struct {
	Uploader Uploader
	Target   Target
	Reporter progress.Reporter
	Logger   *logging.Logger
	Retry    http.RetryConfig
}

// Publish uploads the audio files of each folder (relative to root) to the
// target. Object keys are the target prefix plus the path relative to root.
// A failed file is logged and counted; the remaining files are still tried.
func Publish(ctx context.Context, root string, folders []string, opts PublishOptions) (PublishResult, error) {
	var result PublishResult
	if opts.Uploader == nil {
		return result, fmt.Errorf("no uploader configured")
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.NewNoOpProgress()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = http.DefaultRetryConfig()
	}

	files, err := collectAudio(root, folders)
	if err != nil {
		return result, err
	}
	if len(files) == 0 {
		return result, nil
	}

	opts.Reporter.Start(int64(len(files)), "Uploading to "+opts.Target.String())
	defer opts.Reporter.Finish()

	for i, rel := range files {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		key := opts.Target.Key(filepath.ToSlash(rel))
		local := filepath.Join(root, rel)
		opts.Reporter.SetDescription(rel)

		retry := opts.Retry
		retry.OnRetry = func(attempt int, err error, errType http.ErrorType) {
			opts.Logger.Warn().Str("key", key).Int("attempt", attempt).
				Str("class", http.ErrorTypeName(errType)).Err(err).Msg("Upload retry")
		}
		err := http.ExecuteWithRetry(ctx, retry, func() error {
			return opts.Uploader.Upload(ctx, local, key)
		})
		if err != nil {
			result.Failed++
			opts.Reporter.Error(err)
			opts.Logger.Error().Err(err).Str("file", rel).Msg("Upload failed")
		} else {
			result.Uploaded++
			result.Keys = append(result.Keys, key)
			opts.Logger.Debug().Str("key", key).Msg("Uploaded")
		}
		opts.Reporter.Update(int64(i + 1))
	}

	if result.Failed > 0 {
		return result, fmt.Errorf("%d of %d uploads failed", result.Failed, len(files))
	}
	return result, nil
}

// collectAudio returns sorted paths relative to root of the audio files in
// the given folders. Missing folders are ignored.
func collectAudio(root string, folders []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, folder := range folders {
		dir := filepath.Join(root, folder)
		err := localfs.Walk(dir, localfs.WalkOptions{AudioOnly: true}, func(p string, _ fs.FileInfo) error {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			if !seen[rel] {
				seen[rel] = true
				files = append(files, rel)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
	}
	sort.Strings(files)
	return files, nil
}
