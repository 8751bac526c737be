package acl

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"careflow-backend/application/ports"
	pkgerrors "careflow-backend/pkg/errors"
)

// PushDialer opens the generation backend's per-job status WebSocket
type PushDialer struct {
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// NewPushDialer creates a dialer against the backend's ws:// base URL
func NewPushDialer(baseURL, apiKey string, logger *zap.Logger) *PushDialer {
	return &PushDialer{baseURL: baseURL, apiKey: apiKey, logger: logger}
}

// Dial implements ports.PushDialer
func (d *PushDialer) Dial(ctx context.Context, jobID string) (ports.StatusStream, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	var header map[string][]string
	if d.apiKey != "" {
		header = map[string][]string{"Authorization": {"Bearer " + d.apiKey}}
	}

	conn, _, err := dialer.DialContext(ctx, d.baseURL+"/ws/generate/"+jobID, header)
	if err != nil {
		return nil, pkgerrors.NewExternalError(generationServiceName, "failed to open push channel", err)
	}

	stream := &pushStream{
		conn:    conn,
		updates: make(chan ports.GenerationStatus, 16),
		logger:  d.logger,
	}
	go stream.readLoop(jobID)
	return stream, nil
}

// pushStream is one open push channel. The read loop owns the connection;
// Close just signals it and waits for the channel to drain.
type pushStream struct {
	conn      *websocket.Conn
	updates   chan ports.GenerationStatus
	logger    *zap.Logger
	closeOnce sync.Once
}

// Updates implements ports.StatusStream
func (s *pushStream) Updates() <-chan ports.GenerationStatus {
	return s.updates
}

// Close implements ports.StatusStream
func (s *pushStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

func (s *pushStream) readLoop(jobID string) {
	defer close(s.updates)
	defer s.Close()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("push channel closed unexpectedly",
					zap.String("job_id", jobID),
					zap.Error(err))
			}
			return
		}

		var status ports.GenerationStatus
		if err := json.Unmarshal(data, &status); err != nil {
			// malformed frame; the poll channel still covers us
			s.logger.Debug("dropping malformed push message",
				zap.String("job_id", jobID),
				zap.Error(err))
			continue
		}
		if status.JobID == "" {
			status.JobID = jobID
		}

		select {
		case s.updates <- status:
		default:
			// consumer is behind; drop the oldest by reading one off
			select {
			case <-s.updates:
			default:
			}
			s.updates <- status
		}
	}
}
