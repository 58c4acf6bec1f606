package telegram

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"transkribator/internal/logging"
	"transkribator/internal/pipeline"
	"transkribator/internal/textutil"
)

// Download fetches the payload's file into the job workspace.
func (c *Client) Download(ctx context.Context, pc *pipeline.Context) (string, error) {
	workspace := pc.Artifacts.WorkspaceDir
	if workspace == "" {
		return "", errors.New("workspace missing; prepare stage must run first")
	}
	file, err := c.GetFile(ctx, pc.Payload.FileID)
	if err != nil {
		return "", err
	}
	name := pc.Payload.FileName
	if strings.TrimSpace(name) == "" {
		name = path.Base(file.FilePath)
	}
	dest := filepath.Join(workspace, textutil.SanitizeFileName(name, "media"))
	written, err := c.DownloadFile(ctx, file.FilePath, dest)
	if err != nil {
		return "", err
	}
	logging.WithContext(ctx, c.logger).Info("media downloaded",
		logging.String("file_id", pc.Payload.FileID),
		logging.String("path", dest),
		logging.Int64("bytes", written),
	)
	return dest, nil
}

// Deliver sends the transcript to the originating chat, as a document when
// it does not fit a single message.
func (c *Client) Deliver(ctx context.Context, pc *pipeline.Context) error {
	chatID := pc.Job.UserID
	if pc.Payload.ChatID != nil {
		chatID = *pc.Payload.ChatID
	}
	text := strings.TrimSpace(pc.Artifacts.Transcript)
	if text == "" {
		return c.SendMessage(ctx, chatID, "Транскрибация завершена, но речь не распознана.")
	}
	if len([]rune(text)) <= MaxMessageLength {
		if err := c.SendMessage(ctx, chatID, text); err != nil {
			return fmt.Errorf("deliver transcript: %w", err)
		}
		return nil
	}
	caption := "Транскрипция"
	if pc.Artifacts.Note != nil {
		caption = fmt.Sprintf("Транскрипция заметки #%d", pc.Artifacts.Note.ID)
	}
	if err := c.SendDocument(ctx, chatID, textutil.TranscriptFileName(pc.Payload.FileName), []byte(text), caption); err != nil {
		return fmt.Errorf("deliver transcript document: %w", err)
	}
	return nil
}
