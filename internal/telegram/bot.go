// Package telegram lets users send a photo to a Telegram bot and get the
// palm verdict back as a chat message.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/example/palm-check/internal/imagecodec"
	"github.com/example/palm-check/internal/palm"
)

const (
	msgStart = `Hi! Send me a photo and I will tell you whether it looks like a palm.

Commands:
/help - how it works`

	msgHelp = `How it works:

1. Send a photo (or an image file) of your open hand
2. I count how much of the picture has a skin tone
3. More than 10% skin counts as a palm

Tips:
- Fill the frame with your hand
- Use even, natural light`

	msgSendPhoto       = "Please send a photo of your palm."
	msgUnknownCommand  = "Unknown command. Use /help."
	msgInvalidImage    = "That file is not an image I can read."
	msgProcessingError = "Something went wrong while analysing the photo. Please try again."
	msgTooLarge        = "That file is too large. Please send an image under 10 MB."

	maxDownloadSize = 10 << 20
)

var errFileTooLarge = errors.New("file exceeds download limit")

// Analyzer is the analysis entry point the bot forwards photos to.
type Analyzer interface {
	Analyze(ctx context.Context, filename string, data []byte) (string, palm.Result, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot is a long-polling Telegram bot.
type Bot struct {
	client   *tgbotapi.BotAPI
	api      sender
	analyzer Analyzer
	download func(ctx context.Context, fileID string) ([]byte, error)
	logger   *zap.Logger
}

// NewBot authorises against the Bot API with token.
func NewBot(token string, analyzer Analyzer, logger *zap.Logger) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	b := &Bot{
		client:   client,
		api:      client,
		analyzer: analyzer,
		logger:   logger.Named("telegram"),
	}
	b.download = b.downloadFile
	b.logger.Info("authorized", zap.String("account", client.Self.UserName))
	return b, nil
}

// Run processes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.client.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	fileID, filename := imageAttachment(msg)
	if fileID == "" {
		b.sendMessage(msg.Chat.ID, msgSendPhoto)
		return
	}
	b.handleImage(ctx, msg.Chat.ID, fileID, filename)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, msgStart)
	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)
	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

func (b *Bot) handleImage(ctx context.Context, chatID int64, fileID, filename string) {
	data, err := b.download(ctx, fileID)
	if errors.Is(err, errFileTooLarge) {
		b.sendMessage(chatID, msgTooLarge)
		return
	}
	if err != nil {
		b.logger.Error("failed to download photo", zap.Error(err), zap.Int64("chat_id", chatID))
		b.sendMessage(chatID, msgProcessingError)
		return
	}

	requestID, result, err := b.analyzer.Analyze(ctx, filename, data)
	switch {
	case errors.Is(err, imagecodec.ErrInvalidImage):
		b.sendMessage(chatID, msgInvalidImage)
	case err != nil:
		b.logger.Error("analysis failed", zap.Error(err), zap.String("request_id", requestID))
		b.sendMessage(chatID, msgProcessingError)
	default:
		b.sendMessage(chatID, FormatReply(requestID, result))
	}
}

// FormatReply renders an analysis result as a chat message.
func FormatReply(requestID string, result palm.Result) string {
	var sb strings.Builder
	if result.IsPalm {
		sb.WriteString("Palm: yes\n")
	} else {
		sb.WriteString("Palm: no\n")
	}
	sb.WriteString(result.Message)
	if requestID != "" {
		fmt.Fprintf(&sb, "\nRequest: %s", requestID)
	}
	return sb.String()
}

// imageAttachment picks the largest photo size, or an image document.
func imageAttachment(msg *tgbotapi.Message) (fileID, filename string) {
	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		return photo.FileID, photo.FileUniqueID + ".jpg"
	}
	if doc := msg.Document; doc != nil && strings.HasPrefix(doc.MimeType, "image/") {
		return doc.FileID, doc.FileName
	}
	return "", ""
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.client.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return fetchFile(ctx, http.DefaultClient, file.Link(b.client.Token), maxDownloadSize)
}

// fetchFile downloads url, refusing bodies longer than limit.
func fetchFile(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", errFileTooLarge, limit)
	}
	return data, nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}
