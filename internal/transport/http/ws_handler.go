package http

import (
	"encoding/json"
	"log"
	"net/http"

	"knowledge-test-service/internal/app"
	"knowledge-test-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.TestService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.TestService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	ID     int  `json:"id"`
	Answer bool `json:"answer"`
}

type questionPayload struct {
	ID       int    `json:"id"`
	Question string `json:"question"`
	Tooltip  string `json:"tooltip,omitempty"`
}

type sectionPayload struct {
	Category  int               `json:"category"`
	Questions []questionPayload `json:"questions"`
}

type questionsPayload struct {
	Message  string           `json:"message"`
	Sections []sectionPayload `json:"sections"`
}

type cooldownPayload struct {
	Message    string `json:"message"`
	NextTestAt string `json:"next_test_at"`
	LastTestAt string `json:"last_test_at"`
}

type incompletePayload struct {
	Message         string `json:"message"`
	FirstUnanswered int    `json:"first_unanswered"`
}

type resultPayload struct {
	Score   int    `json:"score"`
	Passed  bool   `json:"passed"`
	TakenAt string `json:"taken_at"`
	Message string `json:"message"`
}

type redirectPayload struct {
	URL string `json:"url"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// wsClient pairs the outbound queue with the writer goroutine's lifetime so
// pushes never block on a writer that already exited.
type wsClient struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func (c *wsClient) push(msg outboundMessage[any]) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

// wsNavigator forwards navigation refresh signals to the connection that
// triggered them.
type wsNavigator struct {
	client *wsClient
}

func (n *wsNavigator) RefreshNavigation() {
	n.client.push(outboundMessage[any]{Type: "nav_refresh", Payload: struct{}{}})
}

// ServeWS upgrades HTTP requests to websockets and drives the test session
// from the client's messages.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer h.service.End(userID)

	client := &wsClient{
		send: make(chan outboundMessage[any], 16),
		done: make(chan struct{}),
	}

	go func() {
		defer close(client.done)
		for msg := range client.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	nav := &wsNavigator{client: client}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "get_settings":
			outcome, err := h.service.Start(r.Context(), userID, nav)
			if err != nil {
				client.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			client.push(startMessage(outcome))
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				client.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			if err := h.service.Answer(userID, payload.ID, payload.Answer); err != nil {
				client.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			client.push(outboundMessage[any]{Type: "answer_ack", Payload: answerPayload{ID: payload.ID, Answer: payload.Answer}})
		case "submit":
			outcome, err := h.service.Submit(r.Context(), userID, nav)
			if err != nil {
				client.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			if msg, ok := submitMessage(outcome); ok {
				client.push(msg)
			}
		default:
			client.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(client.send)
	<-client.done
}

func startMessage(outcome app.StartOutcome) outboundMessage[any] {
	switch outcome.Decision {
	case app.DecisionCooldown:
		return outboundMessage[any]{Type: "cooldown", Payload: cooldownPayload{
			Message:    "You are not allowed to take the knowledge test until " + outcome.NextTestAt + ". Last test taken at " + outcome.LastTestAt + ".",
			NextTestAt: outcome.NextTestAt,
			LastTestAt: outcome.LastTestAt,
		}}
	case app.DecisionRedirect:
		return outboundMessage[any]{Type: "redirect", Payload: redirectPayload{URL: "/"}}
	default:
		return outboundMessage[any]{Type: "questions", Payload: questionsPayload{
			Message:  "Please complete the following questions.",
			Sections: sectionPayloads(outcome.Questions),
		}}
	}
}

// submitMessage maps a submit outcome to a wire message. A trigger swallowed
// by the completion guard produces nothing.
func submitMessage(outcome app.SubmitOutcome) (outboundMessage[any], bool) {
	switch {
	case outcome.Duplicate:
		return outboundMessage[any]{}, false
	case outcome.Incomplete:
		return outboundMessage[any]{Type: "incomplete", Payload: incompletePayload{
			Message:         outcome.Message,
			FirstUnanswered: outcome.FirstUnanswered,
		}}, true
	case outcome.State == app.StateRateLimited:
		return outboundMessage[any]{Type: "rate_limited", Payload: errorPayload{Message: outcome.Message}}, true
	case outcome.State == app.StateSubmissionError:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: outcome.Message}}, true
	default:
		return outboundMessage[any]{Type: "result", Payload: resultPayload{
			Score:   outcome.Score,
			Passed:  outcome.Passed,
			TakenAt: outcome.TakenAt,
			Message: outcome.Message,
		}}, true
	}
}

// sectionPayloads strips correct answers before anything reaches the wire.
func sectionPayloads(set domain.QuestionSet) []sectionPayload {
	sections := make([]sectionPayload, 0, len(set.Sections))
	for _, group := range set.Sections {
		if len(group) == 0 {
			continue
		}
		section := sectionPayload{Category: group[0].Category, Questions: make([]questionPayload, 0, len(group))}
		for _, q := range group {
			section.Questions = append(section.Questions, questionPayload{ID: q.ID, Question: q.Prompt, Tooltip: q.Tooltip})
		}
		sections = append(sections, section)
	}
	return sections
}
