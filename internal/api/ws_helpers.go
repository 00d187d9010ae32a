package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"reflex/internal/logging"
)

const (
	wsReadBufferSize  = 1024
	wsWriteBufferSize = 1024
	wsWriteTimeout    = 10 * time.Second
)

type wsError struct {
	Status    int
	CloseCode int
	Message   string
	Err       error
}

func upgradeWebSocket(w http.ResponseWriter, r *http.Request, allowedOrigins []string) (*websocket.Conn, error) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBufferSize,
		WriteBufferSize: wsWriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, allowedOrigins)
		},
	}
	return upgrader.Upgrade(w, r, nil)
}

func requireWSToken(w http.ResponseWriter, r *http.Request, token string, logger *logging.Logger) bool {
	if validateToken(r, token) {
		return true
	}
	logWSError(logger, r, wsError{
		Status:    http.StatusUnauthorized,
		CloseCode: websocket.ClosePolicyViolation,
		Message:   "unauthorized",
	})
	http.Error(w, "unauthorized", http.StatusUnauthorized)
	return false
}

// wsWriter serializes JSON writes from the stream goroutine and the
// read loop's control frames onto one connection.
type wsWriter struct {
	conn     *websocket.Conn
	mutex    sync.Mutex
	stopOnce sync.Once
	done     chan struct{}
}

func newWSWriter(conn *websocket.Conn) *wsWriter {
	return &wsWriter{conn: conn, done: make(chan struct{})}
}

func (writer *wsWriter) WriteJSON(payload any) error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	if err := writer.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return writer.conn.WriteJSON(payload)
}

func (writer *wsWriter) Close(closeCode int, reason string) {
	writer.stopOnce.Do(func() {
		close(writer.done)
		deadline := time.Now().Add(wsWriteTimeout)
		message := websocket.FormatCloseMessage(closeCode, truncateCloseReason(reason))
		writer.mutex.Lock()
		_ = writer.conn.WriteControl(websocket.CloseMessage, message, deadline)
		writer.mutex.Unlock()
		_ = writer.conn.Close()
	})
}

// streamJSON pumps values from output to the connection until the
// writer is closed, the channel closes, or a write fails. buildPayload
// may veto a value.
func streamJSON[T any](writer *wsWriter, output <-chan T, buildPayload func(T) (any, bool)) {
	go func() {
		for {
			select {
			case value, ok := <-output:
				if !ok {
					return
				}
				payload, send := buildPayload(value)
				if !send {
					continue
				}
				if err := writer.WriteJSON(payload); err != nil {
					return
				}
			case <-writer.done:
				return
			}
		}
	}()
}

func logWSError(logger *logging.Logger, r *http.Request, wsErr wsError) {
	if logger == nil || r == nil {
		return
	}

	fields := map[string]string{
		"path":    r.URL.Path,
		"status":  strconv.Itoa(wsErr.Status),
		"message": wsErr.Message,
	}
	if wsErr.CloseCode != 0 {
		fields["close_code"] = strconv.Itoa(wsErr.CloseCode)
	}
	if r.RemoteAddr != "" {
		fields["remote_addr"] = r.RemoteAddr
	}
	if wsErr.Err != nil {
		fields["error"] = wsErr.Err.Error()
	}

	if wsErr.Status >= http.StatusInternalServerError {
		logger.Error("websocket error", fields)
	} else {
		logger.Warn("websocket error", fields)
	}
}

func truncateCloseReason(reason string) string {
	// close frame payloads cap at 125 bytes, minus the 2-byte code
	const maxReasonBytes = 123
	if len(reason) <= maxReasonBytes {
		return reason
	}
	return reason[:maxReasonBytes]
}
