package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	app "area-bot/internal/application"
	"area-bot/internal/container"
	"area-bot/internal/domain/entity"
	"area-bot/internal/logger"
)

const (
	msgStart = `👋 Привет! Я измеряю площадь частиц на микрофотографиях.

1️⃣ /scale — пришлите фото шкалы и укажите точку на эталонном отрезке
2️⃣ /measure — пришлите фото частицы и укажите точку на ней

📋 Команды:
/scale — калибровка по шкале
/measure — измерить частицу
/auto — измерить все объекты на фото
/unit <имя> — единица длины шкалы (например, µm)
/status — текущая калибровка
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте /scale и фото шкалы
2️⃣ Бот пришлёт уменьшенную копию: ответьте координатами точки на шкале, например "120 340"
3️⃣ Отправьте /measure и фото частицы, затем координаты точки на частице
4️⃣ Вы получите площадь и фото с подсветкой маски

💡 Координаты отсчитываются от левого верхнего угла присланной ботом копии.
💡 Единица шкалы задаётся командой /unit, например /unit µm`

	msgAwaitingScale    = "📏 Отправьте фото шкалы (эталонного отрезка длиной в одну единицу)."
	msgAwaitingTarget   = "🔬 Отправьте фото частицы для измерения."
	msgAwaitingAuto     = "🔬 Отправьте фото: я измерю все найденные объекты."
	msgClickScale       = "👆 Ответьте координатами точки на шкале: \"x y\" (копия %dx%d)."
	msgClickTarget      = "👆 Ответьте координатами точки на частице: \"x y\" (копия %dx%d)."
	msgBadClick         = "❓ Не понял координаты. Напишите два числа через пробел, например \"120 340\"."
	msgCancelled        = "❌ Операция отменена."
	msgSendPhoto        = "📸 Отправьте /scale для калибровки или /measure для измерения."
	msgUnknownCommand   = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing       = "⏳ Обрабатываю изображение..."
	msgProcessingError  = "⚠️ Не удалось обработать изображение. Попробуйте ещё раз."
	msgNeedCalibration  = "📏 Сначала выполните калибровку: /scale"
	msgEmptyMask        = "⚠️ Под указанной точкой ничего не найдено. Укажите точку прямо на шкале."
	msgOutOfBounds      = "⚠️ Точка за пределами изображения. Укажите координаты внутри копии."
	msgNoMask           = "⚠️ Модель не нашла объект. Попробуйте другую точку."
	msgUnitUsage        = "ℹ️ Использование: /unit <имя>, например /unit µm"
	msgInvalidUnit      = "⚠️ Единица должна быть от 1 до 16 символов без пробелов."
	msgInvalidImage     = "⚠️ Не удалось прочитать изображение. Пришлите фото в JPEG или PNG."
	msgUnitSet          = "✅ Единица измерения: %s"
	msgCalibrated       = "✅ Калибровка: %.2f пикс. на 1 %s.\n🔬 Теперь отправьте фото частицы."
	msgArea             = "📐 Площадь: %.4g %s² (%d пикс.)"
	msgStatusNone       = "ℹ️ Калибровки нет. Единица: %s."
	msgStatusCalibrated = "ℹ️ Калибровка: %.2f пикс. на 1 %s (с %s)."
	msgNoObjects        = "✅ Объекты не найдены."
	maxAutoLines        = 30
)

// Bot представляет Telegram-бота
type Bot struct {
	api          *tgbotapi.BotAPI
	sessions     *app.SessionService
	measurements *app.MeasurementService
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.L().Info("authorized on telegram", zap.String("account", api.Self.UserName))

	return &Bot{
		api:          api,
		sessions:     c.SessionService,
		measurements: c.MeasurementService,
	}, nil
}

// Run запускает основной цикл обработки сообщений до отмены контекста
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
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func sessionID(userID int64) string {
	return fmt.Sprintf("tg-%d", userID)
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	session, err := b.sessions.GetOrCreate(ctx, sessionID(msg.From.ID), msg.Chat.ID)
	if err != nil {
		logger.L().Error("failed to get session", zap.Int64("user", msg.From.ID), zap.Error(err))
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, session)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg, session)
		return
	}

	// Ответ с координатами
	if session.State == entity.StateAwaitingScaleClick || session.State == entity.StateAwaitingTargetClick {
		b.handleClick(ctx, msg, session)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, session *entity.Session) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.cancel(ctx, session.ID)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "scale":
		if _, err := b.sessions.BeginCalibration(ctx, session.ID); err != nil {
			b.reportError(chatID, err)
			return
		}
		b.sendMessage(chatID, msgAwaitingScale)

	case "measure", "auto":
		auto := msg.Command() == "auto"
		if _, err := b.sessions.BeginMeasurement(ctx, session.ID, auto); err != nil {
			b.reportError(chatID, err)
			return
		}
		if auto {
			b.sendMessage(chatID, msgAwaitingAuto)
		} else {
			b.sendMessage(chatID, msgAwaitingTarget)
		}

	case "unit":
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			b.sendMessage(chatID, msgUnitUsage)
			return
		}
		updated, err := b.sessions.SetUnit(ctx, session.ID, arg)
		if err != nil {
			b.reportError(chatID, err)
			return
		}
		b.sendMessage(chatID, fmt.Sprintf(msgUnitSet, updated.Unit))

	case "status":
		b.sendMessage(chatID, statusText(session))

	case "cancel":
		b.cancel(ctx, session.ID)
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

func (b *Bot) cancel(ctx context.Context, id string) {
	if _, err := b.sessions.Cancel(ctx, id); err != nil {
		logger.L().Error("failed to cancel session", zap.String("session", id), zap.Error(err))
	}
}

// handlePhoto принимает фото и, в зависимости от шага, ждёт клика или
// сразу размечает все объекты
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, session *entity.Session) {
	// Получаем файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]

	if session.State == entity.StateAwaitingAutoPhoto {
		b.handleAutoPhoto(ctx, msg, session, photo.FileID)
		return
	}

	next := nextClickState(session)

	imageData, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		logger.L().Error("failed to download photo", zap.Error(err))
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	preview, err := b.measurements.Preview(app.Upload{Name: session.ID + ".jpg", Data: imageData})
	if err != nil {
		b.reportError(msg.Chat.ID, fmt.Errorf("build preview: %w", err))
		return
	}

	if _, err := b.sessions.AwaitClick(ctx, session.ID, photo.FileID, next); err != nil {
		b.reportError(msg.Chat.ID, err)
		return
	}

	caption := msgClickTarget
	if next == entity.StateAwaitingScaleClick {
		caption = msgClickScale
	}
	b.sendPhoto(msg.Chat.ID, preview.Image, fmt.Sprintf(caption, preview.Display.Width, preview.Display.Height))
}

// nextClickState решает, чем считать пришедшее фото.
func nextClickState(session *entity.Session) entity.SessionState {
	switch session.State {
	case entity.StateAwaitingScalePhoto, entity.StateAwaitingScaleClick:
		return entity.StateAwaitingScaleClick
	case entity.StateAwaitingTargetPhoto, entity.StateAwaitingTargetClick:
		return entity.StateAwaitingTargetClick
	}
	if session.IsCalibrated() {
		return entity.StateAwaitingTargetClick
	}
	return entity.StateAwaitingScaleClick
}

func (b *Bot) handleAutoPhoto(ctx context.Context, msg *tgbotapi.Message, session *entity.Session, fileID string) {
	b.sendMessage(msg.Chat.ID, msgProcessing)

	imageData, err := b.downloadFile(ctx, fileID)
	if err != nil {
		logger.L().Error("failed to download photo", zap.Error(err))
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	results, _, err := b.measurements.MeasureAll(ctx, session.ID, app.Upload{Name: session.ID + ".jpg", Data: imageData}, 0)
	if err != nil {
		b.reportError(msg.Chat.ID, err)
		return
	}

	b.sendMessage(msg.Chat.ID, autoText(results))
}

// handleClick выполняет калибровку или измерение по присланным координатам
func (b *Bot) handleClick(ctx context.Context, msg *tgbotapi.Message, session *entity.Session) {
	x, y, err := parseClick(msg.Text)
	if err != nil {
		b.sendMessage(msg.Chat.ID, msgBadClick)
		return
	}
	if session.PendingFileID == "" {
		b.cancel(ctx, session.ID)
		b.sendMessage(msg.Chat.ID, msgSendPhoto)
		return
	}

	b.sendMessage(msg.Chat.ID, msgProcessing)

	imageData, err := b.downloadFile(ctx, session.PendingFileID)
	if err != nil {
		logger.L().Error("failed to download photo", zap.Error(err))
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	upload := app.Upload{Name: session.ID + ".jpg", Data: imageData}
	click := app.Click{X: x, Y: y}

	if session.State == entity.StateAwaitingScaleClick {
		out, err := b.measurements.Calibrate(ctx, session.ID, upload, click)
		if err != nil {
			b.reportError(msg.Chat.ID, err)
			return
		}
		b.sendResult(msg.Chat.ID, out.Overlay, fmt.Sprintf(msgCalibrated, out.PixelsPerUnit, out.Session.Unit))
		return
	}

	out, err := b.measurements.Measure(ctx, session.ID, upload, click)
	if err != nil {
		b.reportError(msg.Chat.ID, err)
		return
	}
	m := out.Measurement
	b.sendResult(msg.Chat.ID, out.Overlay, fmt.Sprintf(msgArea, m.Area, m.Unit, m.PixelArea))
}

// parseClick разбирает "x y", "x,y" или "x;y".
func parseClick(text string) (float64, float64, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';' || r == '\t' || r == '\n'
	})
	if len(fields) != 2 {
		return 0, 0, errors.New("expected two coordinates")
	}
	var x, y float64
	if _, err := fmt.Sscanf(fields[0], "%g", &x); err != nil {
		return 0, 0, fmt.Errorf("parse x: %w", err)
	}
	if _, err := fmt.Sscanf(fields[1], "%g", &y); err != nil {
		return 0, 0, fmt.Errorf("parse y: %w", err)
	}
	if x < 0 || y < 0 {
		return 0, 0, errors.New("negative coordinates")
	}
	return x, y, nil
}

func statusText(session *entity.Session) string {
	if !session.IsCalibrated() {
		return fmt.Sprintf(msgStatusNone, session.Unit)
	}
	return fmt.Sprintf(msgStatusCalibrated, session.PixelsPerUnit, session.Unit, session.CalibratedAt.Format("2006-01-02 15:04"))
}

func autoText(results []entity.Measurement) string {
	if len(results) == 0 {
		return msgNoObjects
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔬 Найдено объектов: %d\n", len(results))
	for i, m := range results {
		if i == maxAutoLines {
			fmt.Fprintf(&sb, "… и ещё %d", len(results)-maxAutoLines)
			break
		}
		fmt.Fprintf(&sb, "%d. %.4g %s² (%d пикс.)\n", i+1, m.Area, m.Unit, m.PixelArea)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// rejectionMessage переводит ошибку в ответ пользователю.
func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, entity.ErrCalibrationUnavailable):
		return msgNeedCalibration
	case errors.Is(err, entity.ErrEmptyCalibrationMask):
		return msgEmptyMask
	case errors.Is(err, entity.ErrOutOfBoundsPoint):
		return msgOutOfBounds
	case errors.Is(err, entity.ErrNoMask):
		return msgNoMask
	case errors.Is(err, entity.ErrInvalidUnit):
		return msgInvalidUnit
	case errors.Is(err, entity.ErrInvalidImage):
		return msgInvalidImage
	default:
		return msgProcessingError
	}
}

func (b *Bot) reportError(chatID int64, err error) {
	if !app.IsRejection(err) {
		logger.L().Error("request failed", zap.Int64("chat", chatID), zap.Error(err))
	}
	b.sendMessage(chatID, rejectionMessage(err))
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.api.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendResult отправляет фото с подсветкой или только текст, если фото нет
func (b *Bot) sendResult(chatID int64, overlay []byte, text string) {
	if len(overlay) == 0 {
		b.sendMessage(chatID, text)
		return
	}
	b.sendPhoto(chatID, overlay, text)
}

func (b *Bot) sendPhoto(chatID int64, data []byte, caption string) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image.jpg", Bytes: data})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		logger.L().Error("failed to send photo", zap.Int64("chat", chatID), zap.Error(err))
	}
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		logger.L().Error("failed to send message", zap.Int64("chat", chatID), zap.Error(err))
	}
}
