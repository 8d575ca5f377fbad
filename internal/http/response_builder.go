package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Client-side events sent through HX-Trigger. web/static/app.js listens
// for the last two; the totals panel listens for eventExpenseCreated.
const (
	eventExpenseCreated = "expense:created"
	eventFormReset      = "form:reset"
	eventNotify         = "show-notification"
)

type notifyLevel string

const (
	notifySuccess notifyLevel = "success"
	notifyError   notifyLevel = "error"
)

// reply accumulates status, headers, HX-Trigger events and a body, and
// writes them in the order net/http requires.
type reply struct {
	status  int
	headers map[string]string
	events  map[string]any
	body    []byte
}

func newReply() *reply {
	return &reply{
		status:  http.StatusOK,
		headers: map[string]string{},
		events:  map[string]any{},
	}
}

func (r *reply) Status(code int) *reply {
	r.status = code
	return r
}

func (r *reply) Header(name, value string) *reply {
	r.headers[name] = value
	return r
}

func (r *reply) Trigger(event string, detail any) *reply {
	r.events[event] = detail
	return r
}

// ExpenseCreated announces the new data set size.
func (r *reply) ExpenseCreated(count int) *reply {
	return r.Trigger(eventExpenseCreated, map[string]int{"count": count})
}

func (r *reply) FormReset() *reply {
	return r.Trigger(eventFormReset, struct{}{})
}

// Notify shows a toast for durationMs milliseconds.
func (r *reply) Notify(level notifyLevel, message string, durationMs int) *reply {
	return r.Trigger(eventNotify, map[string]any{
		"type":     string(level),
		"message":  message,
		"duration": durationMs,
	})
}

func (r *reply) HTML(fragment string) *reply {
	return r.Header("Content-Type", "text/html; charset=utf-8").Body([]byte(fragment))
}

func (r *reply) Text(s string) *reply {
	return r.Header("Content-Type", "text/plain; charset=utf-8").Body([]byte(s))
}

// JSON encodes v as the body. Encoding failures become a 500.
func (r *reply) JSON(v any) *reply {
	data, err := json.Marshal(v)
	if err != nil {
		return r.Status(http.StatusInternalServerError).Text("encoding failed")
	}
	return r.Header("Content-Type", "application/json").Body(data)
}

func (r *reply) Body(b []byte) *reply {
	r.body = b
	return r
}

func (r *reply) Write(w http.ResponseWriter) {
	for name, value := range r.headers {
		w.Header().Set(name, value)
	}
	if len(r.events) > 0 {
		if data, err := json.Marshal(r.events); err == nil {
			w.Header().Set("HX-Trigger", string(data))
		}
	}
	w.WriteHeader(r.status)
	if len(r.body) > 0 {
		_, _ = w.Write(r.body)
	}
}

// errorReply renders message as an escaped error fragment and raises an
// error toast with the same text.
func errorReply(status int, message string) *reply {
	return newReply().
		Status(status).
		Notify(notifyError, message, 5000).
		HTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

// jsonError is the body of a failed JSON request.
type jsonError struct {
	Error string `json:"error"`
}
