package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/jw6ventures/powerchat/internal/ics"
	"github.com/jw6ventures/powerchat/internal/metrics"
	"github.com/jw6ventures/powerchat/internal/store"
)

var (
	ErrBadInvocation     = errors.New("invalid invocation")
	ErrUnknownInvocation = errors.New("unknown invocation")
	ErrNotCompleted      = errors.New("invocation has not completed")
)

const (
	warnPersist = "The meeting could not be saved. You can still share it, but without a link."
	warnInvalid = "The meeting cannot be added to a calendar"
)

// TaskStore persists capture records.
type TaskStore interface {
	Create(ctx context.Context, task store.Task) (*store.Task, error)
}

// Poster appends composed messages to the chat feed.
type Poster interface {
	Share(ctx context.Context, userID int64, content string) (*store.Message, error)
}

// Pipeline owns one Tracker per session.
type Pipeline struct {
	tasks   TaskStore
	chat    Poster
	baseURL string

	mu       sync.Mutex
	sessions map[string]*Tracker
}

// NewPipeline builds a pipeline. baseURL prefixes task links in shared
// messages; empty keeps them relative.
func NewPipeline(tasks TaskStore, chat Poster, baseURL string) *Pipeline {
	return &Pipeline{
		tasks:    tasks,
		chat:     chat,
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: make(map[string]*Tracker),
	}
}

// Tracker returns the session's tracker, creating it on first use.
func (p *Pipeline) Tracker(sessionID string) *Tracker {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.sessions[sessionID]
	if !ok {
		t = NewTracker()
		p.sessions[sessionID] = t
	}
	return t
}

// Forget drops a session's captures, typically on logout.
func (p *Pipeline) Forget(sessionID string) {
	p.mu.Lock()
	delete(p.sessions, sessionID)
	p.mu.Unlock()
}

// Observe advances the capture for inv. In-progress observations only
// report loading. The first completed observation persists the task; later
// ones replay the stored result.
func (p *Pipeline) Observe(ctx context.Context, sessionID string, userID int64, inv Invocation) (Result, error) {
	if err := validateInvocationID(inv.ID); err != nil {
		return Result{}, err
	}
	if !inv.Status.valid() {
		return Result{}, fmt.Errorf("%w: status %q", ErrBadInvocation, inv.Status)
	}

	c := p.Tracker(sessionID).capture(inv.ID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCompleted {
		if inv.Status == StatusComplete {
			metrics.IncMeetingCapture("duplicate")
		}
		return c.result, nil
	}
	if inv.Status != StatusComplete {
		c.state = StateRunning
		return Result{InvocationID: inv.ID, State: StateRunning, Loading: true}, nil
	}

	c.params = inv.Args
	c.result = p.persist(ctx, userID, inv)
	c.state = StateCompleted
	return c.result, nil
}

func (p *Pipeline) persist(ctx context.Context, userID int64, inv Invocation) Result {
	res := Result{InvocationID: inv.ID, State: StateCompleted, Card: newCard(inv.Args)}

	params, err := json.Marshal(inv.Args)
	if err != nil {
		log.Printf("[ERROR] meeting %s: encode parameters: %v", inv.ID, err)
		res.Warning = warnPersist
		metrics.IncMeetingCapture("failed")
		return res
	}

	task := store.Task{
		UserID:       userID,
		TaskType:     ActionName,
		InvocationID: inv.ID,
		Parameters:   params,
		Result:       params,
		Status:       store.TaskCompleted,
	}
	outcome := "persisted"
	if verr := inv.Args.Validate(); verr != nil {
		task.Status = store.TaskFailed
		task.Result, _ = json.Marshal(map[string]string{"error": verr.Error()})
		res.Warning = warnInvalid + ": " + verr.Error()
		outcome = "invalid"
	}

	saved, err := p.tasks.Create(ctx, task)
	if err != nil {
		log.Printf("[WARN] meeting %s: persist task: %v", inv.ID, err)
		res.Warning = warnPersist
		metrics.IncMeetingCapture("failed")
		return res
	}
	metrics.IncMeetingCapture(outcome)
	res.TaskID = saved.ID
	res.TaskURL = TaskPath(saved.ID)
	return res
}

// Share posts the summary of a completed capture to the chat feed. The task
// link is included only when the task was saved.
func (p *Pipeline) Share(ctx context.Context, sessionID string, userID int64, invocationID string) (*store.Message, error) {
	c, ok := p.Tracker(sessionID).Lookup(invocationID)
	if !ok {
		return nil, ErrUnknownInvocation
	}
	c.mu.Lock()
	state, params, taskID := c.state, c.params, c.result.TaskID
	c.mu.Unlock()
	if state != StateCompleted {
		return nil, ErrNotCompleted
	}

	link := ""
	if taskID != "" {
		link = p.baseURL + TaskPath(taskID)
	}
	msg, err := p.chat.Share(ctx, userID, ShareText(params, link))
	if err != nil {
		return nil, fmt.Errorf("share meeting: %w", err)
	}
	return msg, nil
}

// ShareText is the chat sentence announcing a meeting.
func ShareText(p ics.MeetingParameters, taskURL string) string {
	name := strings.TrimSpace(p.MeetingName)
	if name == "" {
		name = "Meeting"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s is scheduled for %s at %s.", name, p.Date, p.Time)
	if ctx := strings.TrimSpace(p.MeetingContext); ctx != "" {
		fmt.Fprintf(&sb, " Context: %s.", strings.TrimRight(ctx, "."))
	}
	if taskURL != "" {
		fmt.Fprintf(&sb, " Details: %s", taskURL)
	}
	return sb.String()
}

// TaskPath is the detail view of a task.
func TaskPath(id string) string {
	return "/ai-tasks/" + url.PathEscape(id)
}
