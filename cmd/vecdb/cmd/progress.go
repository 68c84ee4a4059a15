package cmd

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/vecdbhq/vecdb/internal/async"
	"github.com/vecdbhq/vecdb/internal/ui"
)

// renderIndexProgress polls an async.IndexProgress and drives a ui.Renderer
// (TUI on an interactive terminal, plain text otherwise) until it reaches
// the ready or error state or ctx is cancelled.
func renderIndexProgress(ctx context.Context, out io.Writer, label string, progress *async.IndexProgress) {
	renderer := ui.NewRenderer(ui.NewConfig(out, ui.WithProjectDir(label)))
	if err := renderer.Start(ctx); err != nil {
		return
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			_ = renderer.Stop()
			return
		case <-ticker.C:
			snap := progress.Snapshot()
			stage := stageFromSnapshot(snap.Stage)
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   stage,
				Current: snap.ChunksIndexed,
				Total:   snap.ChunksTotal,
				Message: snap.Stage,
			})

			switch snap.Status {
			case string(async.StatusReady):
				renderer.Complete(ui.CompletionStats{
					Chunks:   snap.ChunksIndexed,
					Files:    snap.FilesProcessed,
					Duration: time.Since(start),
				})
				_ = renderer.Stop()
				return
			case string(async.StatusError):
				renderer.AddError(ui.ErrorEvent{Err: errors.New(snap.ErrorMessage)})
				_ = renderer.Stop()
				return
			}
		}
	}
}

func stageFromSnapshot(stage string) ui.Stage {
	switch async.IndexingStage(stage) {
	case async.StageScanning:
		return ui.StageScanning
	case async.StageChunking:
		return ui.StageChunking
	case async.StageEmbedding:
		return ui.StageEmbedding
	case async.StageIndexing:
		return ui.StageIndexing
	default:
		return ui.StageScanning
	}
}
