package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "depseg/internal/application"
	"depseg/internal/container"
)

const (
	msgStart = `👋 Привет! Я оцениваю глубину сцены по одной фотографии с дороги.

📸 Пришлите снимок, и я подсвечу дорогу и машины: чем теплее цвет, тем ближе объект.

📋 Команды:
/depth — обработать снимок
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте /depth
2️⃣ Пришлите фото дороги
3️⃣ Получите снимок с тепловой картой глубины

💡 Рекомендации:
• Камера на уровне капота или приборной панели
• Горизонт примерно посередине кадра
• Широкий кадр работает лучше квадратного

📋 Команды:
/depth — обработать снимок
/cancel — отменить операцию`

	msgAwaitingPhoto   = "📸 Пришлите фото дороги."
	msgCancelled       = "❌ Операция отменена. Отправьте /depth, чтобы обработать новый снимок."
	msgSendPhoto       = "📸 Пожалуйста, пришлите фото дороги или используйте /help."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Считаю глубину..."
	msgBusy            = "⏳ Предыдущий снимок ещё обрабатывается, подождите."
	msgNothingFound    = "🤷 Дорога и машины на снимке не найдены."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте другое фото."
)

// Bot представляет Telegram-бота
type Bot struct {
	api       *tgbotapi.BotAPI
	container *container.Container
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:       api,
		container: c,
	}, nil
}

// Run обрабатывает сообщения, пока не отменён ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	users := b.container.UserService
	var err error

	switch msg.Command() {
	case "start":
		_, err = users.Cancel(ctx, msg.From.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "depth":
		_, err = users.BeginDepth(ctx, msg.From.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgAwaitingPhoto)

	case "cancel":
		_, err = users.Cancel(ctx, msg.From.ID, msg.Chat.ID)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}

	if err != nil {
		log.Printf("Error updating user %d: %v", msg.From.ID, err)
	}
}

// handlePhoto скачивает снимок наибольшего размера и отвечает наложением
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	photo := msg.Photo[len(msg.Photo)-1]

	imageData, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		log.Printf("Error downloading photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	b.sendMessage(msg.Chat.ID, msgProcessing)

	out, err := b.container.PhotoService.ProcessPhoto(ctx, msg.From.ID, msg.Chat.ID, imageData)
	if errors.Is(err, app.ErrBusy) {
		b.sendMessage(msg.Chat.ID, msgBusy)
		return
	}
	if err != nil {
		log.Printf("Error processing photo of user %d: %v", msg.From.ID, err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	reply := tgbotapi.NewPhoto(msg.Chat.ID, tgbotapi.FileBytes{Name: "depth.png", Bytes: out.Overlay})
	reply.Caption = caption(out)
	if _, err := b.api.Send(reply); err != nil {
		log.Printf("Error sending photo: %v", err)
	}
}

func caption(out *app.PhotoOutput) string {
	if !out.HasRange {
		return msgNothingFound
	}
	return fmt.Sprintf("🛣 Дорога: %.0f%% кадра\n🚗 Машины: %.0f%% кадра\n📏 Глубина: %.1f–%.1f м\n#%d",
		out.RoadFraction*100, out.CarFraction*100, out.Nearest, out.Farthest, out.Processed)
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
