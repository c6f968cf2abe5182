// Websocket streaming endpoint.
//
// Each text message on /v1/stream is one terminal dump. The reply is the
// compacted result as JSON. Binary messages close the connection.
package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/compresr/squeeze/internal/monitoring"
)

// StreamMessage is one reply on /v1/stream.
type StreamMessage struct {
	ID        string `json:"id"`
	Seq       int    `json:"seq"`
	Compacted string `json:"compacted"`
	Original  int    `json:"originalSize"`
	Size      int    `json:"compactedSize"`
	Status    string `json:"status"`
	Fallback  bool   `json:"fallback"`
	Error     string `json:"error,omitempty"`
}

func (g *Gateway) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		g.logger.Debug().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	conn.SetReadLimit(g.maxBodyBytes)
	ctx := r.Context()
	streamID := monitoring.RequestIDFromContext(ctx)

	for seq := 0; ; seq++ {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, ctx.Err()) {
				g.logger.Debug().Err(err).Str("request_id", streamID).Msg("websocket read failed")
			}
			return
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "text messages only")
			return
		}

		start := time.Now()
		msgCtx := monitoring.WithRequestIDContext(ctx, uuid.New().String())
		text := string(data)

		pc, out, procErr := g.compactLog(msgCtx, text, nil)
		stats := g.tokens.Compare("", text, out)
		g.record(msgCtx, pc, monitoring.SourceWebsocket, r.URL.Path, g.logStrategy(), "", stats.OriginalTokens, stats.CompactedTokens, start, procErr)

		reply := StreamMessage{
			ID:        pc.ContentID,
			Seq:       seq,
			Compacted: out,
			Original:  pc.Result.OriginalSize,
			Size:      pc.Result.CompactedSize,
			Status:    pc.Status,
			Fallback:  pc.Fallback,
		}
		if procErr != nil {
			reply.Error = procErr.Error()
		}
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			g.logger.Debug().Err(err).Str("request_id", streamID).Msg("websocket write failed")
			return
		}
	}
}
