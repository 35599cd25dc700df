package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	zero "github.com/wdvxdr1123/ZeroBot"
	"github.com/wdvxdr1123/ZeroBot/driver"
	"github.com/wdvxdr1123/ZeroBot/message"

	"github.com/liao/pdf-chatbot/internal/chat"
	"github.com/liao/pdf-chatbot/internal/config"
	"github.com/liao/pdf-chatbot/internal/qa"
)

type Answerer interface {
	Answer(ctx context.Context, user, query string) (string, error)
	History(ctx context.Context, user string) ([]chat.Turn, error)
}

// Bot QQ 私聊前端，每个 QQ 号对应一个独立的历史
type Bot struct {
	cfg      *config.Config
	answerer Answerer
	started  time.Time
	cancel   context.CancelFunc
}

func New(cfg *config.Config, answerer Answerer) *Bot {
	return &Bot{
		cfg:      cfg,
		answerer: answerer,
		started:  time.Now(),
	}
}

func (b *Bot) Run(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)

	ws := driver.NewWebSocketClient(
		b.cfg.NapCat.WSURL,
		b.cfg.NapCat.AccessToken,
	)

	// 普通私聊消息当作提问
	zero.OnMessage(zero.OnlyPrivate, b.allowedFilter()).Handle(func(zctx *zero.Ctx) {
		b.handleMessage(ctx, zctx)
	})

	// /history 查看自己最近的问答
	zero.OnCommand("history", zero.OnlyPrivate, b.allowedFilter()).Handle(func(zctx *zero.Ctx) {
		turns, err := b.answerer.History(ctx, userKey(zctx.Event.UserID))
		if err != nil {
			slog.Error("fetch history failed", "from", zctx.Event.UserID, "error", err)
			zctx.Send(message.Text(qa.UserMessage(err)))
			return
		}
		zctx.Send(message.Text(formatHistory(turns)))
	})

	// 管理命令：owner 发 /status 查看状态
	zero.OnCommand("status", zero.OnlyPrivate, b.ownerFilter()).Handle(func(zctx *zero.Ctx) {
		zctx.Send(message.Text(b.statusText(time.Now())))
	})

	slog.Info("bot starting",
		"allowed_qq", b.cfg.Bot.AllowedQQ,
		"ws_url", b.cfg.NapCat.WSURL,
	)

	zero.RunAndBlock(&zero.Config{
		NickName:      []string{"pdf-chatbot"},
		CommandPrefix: "/",
		SuperUsers:    []int64{b.cfg.Bot.OwnerQQ},
		Driver:        []zero.Driver{ws},
	}, nil)
}

func (b *Bot) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *Bot) handleMessage(ctx context.Context, zctx *zero.Ctx) {
	query := strings.TrimSpace(zctx.ExtractPlainText())
	if query == "" || strings.HasPrefix(query, "/") {
		return // 跳过纯表情/图片和命令
	}

	slog.Info("received question", "from", zctx.Event.UserID, "text", query)

	answer, err := b.answerer.Answer(ctx, userKey(zctx.Event.UserID), query)
	for _, reply := range replies(answer, err) {
		zctx.Send(message.Text(reply))
	}
	if err != nil {
		slog.Error("answer failed", "from", zctx.Event.UserID, "error", err)
	}
}

// replies 要发送的消息：答案本身，以及失败或未保存时的提示
func replies(answer string, err error) []string {
	var out []string
	if answer != "" {
		out = append(out, answer)
	}
	if err != nil {
		out = append(out, qa.UserMessage(err))
	}
	return out
}

func (b *Bot) statusText(now time.Time) string {
	return fmt.Sprintf("pdf-chatbot running\nuptime: %s\nllm: %s (%s)\nhistory: %s",
		now.Sub(b.started).Round(time.Second),
		b.cfg.LLM.Provider, strings.Join(b.cfg.LLM.ChatModels, ", "),
		b.cfg.History.Driver,
	)
}

func (b *Bot) allowedFilter() zero.Rule {
	return func(ctx *zero.Ctx) bool {
		return b.allowed(ctx.Event.UserID)
	}
}

// allowed 未配置白名单时回复所有人，owner 总是允许
func (b *Bot) allowed(id int64) bool {
	if len(b.cfg.Bot.AllowedQQ) == 0 || id == b.cfg.Bot.OwnerQQ {
		return true
	}
	return slices.Contains(b.cfg.Bot.AllowedQQ, id)
}

func (b *Bot) ownerFilter() zero.Rule {
	return func(ctx *zero.Ctx) bool {
		return ctx.Event.UserID == b.cfg.Bot.OwnerQQ
	}
}

// userKey QQ 用户在历史表里的用户名
func userKey(id int64) string {
	return "qq:" + strconv.FormatInt(id, 10)
}

func formatHistory(turns []chat.Turn) string {
	if len(turns) == 0 {
		return "No history yet."
	}
	var sb strings.Builder
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%d. Q: %s\nA: %s", i+1, t.Query, t.Answer)
	}
	return sb.String()
}
