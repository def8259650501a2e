package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/zlnvch/layerdeck/engine"
	"github.com/zlnvch/layerdeck/geometry"
	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/scene"
	"github.com/zlnvch/layerdeck/service"
	"github.com/zlnvch/layerdeck/worker"
)

var ErrDesignBusy = errors.New("design is open in another session")

// Collaborator is what an editing session needs from the service
type Collaborator interface {
	engine.Persister
	engine.AssetUploader
	GetAsset(ctx context.Context, assetId string) (models.Asset, error)
}

type SessionOptions struct {
	Engine            engine.Options
	DebounceMillisecs int
}

// Session is one editing session: a single goroutine owning the controller
// of the design open on a connection.
type Session struct {
	client    *Client
	svc       Collaborator
	loader    scene.ImageLoader
	opts      SessionOptions
	debouncer *worker.Debouncer
	ctrl      *engine.Controller
}

func NewSession(client *Client, svc Collaborator, loader scene.ImageLoader, opts SessionOptions) *Session {
	return &Session{
		client:    client,
		svc:       svc,
		loader:    loader,
		opts:      opts,
		debouncer: worker.NewDebouncer(opts.DebounceMillisecs),
	}
}

// Run handles inbound messages, due debounced writes and completed
// persistence requests until the connection closes, the session is kicked,
// or shutdownCtx ends.
func (s *Session) Run(shutdownCtx context.Context) {
	ctx, cancel := context.WithCancel(service.WithOwner(shutdownCtx, s.client.owner))
	defer func() {
		cancel()
		close(s.client.Send)
	}()

	go s.debouncer.Run(ctx)
	s.ctrl = engine.NewController(ctx, s.svc, s.svc, s.loader, s.debouncer, s.opts.Engine)

	for {
		select {
		case raw := <-s.client.inbox:
			s.handle(ctx, raw)

		case id := <-s.debouncer.Due():
			s.ctrl.Flush(id)
			s.sendNotices()

		case res := <-s.ctrl.Posted():
			s.ctrl.Complete(res)
			s.sendNotices()
			s.sendState()

		case reason := <-s.client.kick:
			s.send(closedType, closedData{Reason: reason})
			return

		case <-s.client.ctx.Done():
			return

		case <-ctx.Done():
			return
		}
	}
}

// Websocket message structs
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type openMessage struct {
	DesignId string `json:"designId"`
}

// addLayerMessage adds either a stored asset or an uploaded file
type addLayerMessage struct {
	AssetId  string `json:"assetId"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	File     []byte `json:"file"` // base64 in JSON
}

type layerMessage struct {
	LayerId string `json:"layerId"`
}

type pickMessage struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type moveLayerMessage struct {
	LayerId   string           `json:"layerId"`
	Direction engine.Direction `json:"direction"`
}

type rotateMessage struct {
	Delta float64 `json:"delta"`
}

type flipMessage struct {
	Axis geometry.Axis `json:"axis"`
}

type scaleMessage struct {
	Factor float64 `json:"factor"`
}

type dragMessage struct {
	LayerId string  `json:"layerId"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
}

type cropAdjustMessage struct {
	LayerId string  `json:"layerId"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

const (
	stateType  = "state"
	noticeType = "notice"
	closedType = "closed"
)

type responseMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type cropState struct {
	LayerId string  `json:"layerId"`
	Left    float64 `json:"left"`
	Top     float64 `json:"top"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

type stateData struct {
	Design   models.Design  `json:"design"`
	Layers   []models.Layer `json:"layers"`
	Selected string         `json:"selected"`
	Crop     *cropState     `json:"crop"`
}

type noticeData struct {
	Kind    string `json:"kind"`
	LayerId string `json:"layerId,omitempty"`
	Message string `json:"message"`
}

type closedData struct {
	Reason string `json:"reason"`
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &engine.ValidationError{Op: "decode", Err: err}
	}
	return v, nil
}

// handle applies one inbound message. Failures become notices; the session
// continues.
func (s *Session) handle(ctx context.Context, raw []byte) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("Invalid JSON: %v", err)
		return
	}

	if err := s.dispatch(ctx, msg); err != nil {
		s.notice(err)
	}
	s.sendNotices()
	s.sendState()
}

func (s *Session) dispatch(ctx context.Context, msg message) error {
	switch msg.Type {
	case "open":
		m, err := decode[openMessage](msg.Data)
		if err != nil {
			return err
		}
		if !s.client.hub.Claim(ctx, s.client, m.DesignId) {
			return &engine.PreconditionError{Op: "open", Err: ErrDesignBusy}
		}
		return s.ctrl.Load(ctx, m.DesignId)

	case "add_layer":
		m, err := decode[addLayerMessage](msg.Data)
		if err != nil {
			return err
		}
		if m.AssetId != "" {
			asset, err := s.svc.GetAsset(ctx, m.AssetId)
			if err != nil {
				return &engine.PersistenceError{Op: "add", Err: err}
			}
			_, err = s.ctrl.AddLayerFromAsset(ctx, asset)
			return err
		}
		_, err = s.ctrl.AddLayerFromFile(ctx, models.Upload{Filename: m.Filename, MimeType: m.MimeType, Data: m.File})
		return err

	case "delete_layer":
		m, err := decode[layerMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.DeleteLayer(ctx, m.LayerId)

	case "toggle_visibility":
		m, err := decode[layerMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.ToggleVisibility(m.LayerId)

	case "select":
		m, err := decode[layerMessage](msg.Data)
		if err != nil {
			return err
		}
		if m.LayerId == "" {
			s.ctrl.ClearSelection()
			return nil
		}
		return s.ctrl.Select(m.LayerId)

	case "pick":
		m, err := decode[pickMessage](msg.Data)
		if err != nil {
			return err
		}
		_, err = s.ctrl.Pick(m.X, m.Y)
		return err

	case "move_layer":
		m, err := decode[moveLayerMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.MoveLayer(m.LayerId, m.Direction)

	case "rotate":
		m, err := decode[rotateMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.Rotate(m.Delta)

	case "flip":
		m, err := decode[flipMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.Flip(m.Axis)

	case "scale":
		m, err := decode[scaleMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.Scale(m.Factor)

	case "drag":
		m, err := decode[dragMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.Drag(m.LayerId, m.Left, m.Top)

	case "drop":
		m, err := decode[layerMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.Drop(m.LayerId)

	case "crop_enter":
		m, err := decode[layerMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.EnterCrop(m.LayerId)

	case "crop_adjust":
		m, err := decode[cropAdjustMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.AdjustCrop(m.LayerId, geometry.Rect{Left: m.Left, Top: m.Top, Width: m.Width, Height: m.Height})

	case "crop_apply":
		m, err := decode[layerMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.ApplyCrop(ctx, m.LayerId)

	case "crop_cancel":
		m, err := decode[layerMessage](msg.Data)
		if err != nil {
			return err
		}
		return s.ctrl.CancelCrop(m.LayerId)

	default:
		return &engine.ValidationError{Op: "dispatch", Err: fmt.Errorf("unknown message type %q", msg.Type)}
	}
}

func (s *Session) sendState() {
	if !s.ctrl.Loaded() {
		return
	}
	state := stateData{
		Design:   s.ctrl.Design(),
		Layers:   s.ctrl.Layers(),
		Selected: s.ctrl.Selected(),
	}
	if id := s.ctrl.CropPending(); id != "" {
		if r, ok := s.ctrl.CropOverlay(); ok {
			state.Crop = &cropState{LayerId: id, Left: r.Left, Top: r.Top, Width: r.Width, Height: r.Height}
		}
	}
	s.send(stateType, state)
}

func (s *Session) sendNotices() {
	for _, err := range s.ctrl.TakeNotices() {
		s.notice(err)
	}
}

func (s *Session) notice(err error) {
	kind, layerId := classify(err)
	s.send(noticeType, noticeData{Kind: kind, LayerId: layerId, Message: err.Error()})
}

// classify maps an engine error to the notice kind shown to the user
func classify(err error) (string, string) {
	var ve *engine.ValidationError
	var be *engine.BindingError
	var pe *engine.PersistenceError
	var ce *engine.PreconditionError
	switch {
	case errors.As(err, &ve):
		return "validation", ve.LayerId
	case errors.As(err, &be):
		return "binding", be.LayerId
	case errors.As(err, &pe):
		return "persistence", pe.LayerId
	case errors.As(err, &ce):
		return "precondition", ce.LayerId
	}
	return "error", ""
}

func (s *Session) send(msgType string, data any) {
	msgBytes, err := json.Marshal(responseMessage{Type: msgType, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s message: %v", msgType, err)
		return
	}
	select {
	case s.client.Send <- msgBytes:
	case <-s.client.ctx.Done():
	}
}
