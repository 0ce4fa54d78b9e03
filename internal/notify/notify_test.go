package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
	"github.com/zulandar/taskdesk/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func sampleTask() models.Task {
	who := "Иван"
	return models.Task{
		Number:      "TASK-240305-0001",
		Title:       "Принтер",
		Description: "Не печатает",
		Priority:    models.LevelHigh,
		Urgency:     models.LevelLow,
		Status:      models.StatusInProgress,
		Progress:    30,
		AssignedTo:  &who,
		CreatedBy:   "Пётр",
	}
}

// fakeSink fails the first failN sends and records the rest.
type fakeSink struct {
	name  string
	mu    sync.Mutex
	failN int
	calls int
	got   []Message
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Send(_ context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failN {
		return errors.New("unavailable")
	}
	s.got = append(s.got, m)
	return nil
}

func (s *fakeSink) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.got...)
}

func TestCreatedMessage(t *testing.T) {
	m := CreatedMessage(sampleTask())
	if m.Kind != KindTaskCreated || m.TaskNumber != "TASK-240305-0001" {
		t.Errorf("message = %+v", m)
	}
	if m.Title != "Новая задача TASK-240305-0001: Принтер" {
		t.Errorf("Title = %q", m.Title)
	}
	for _, want := range []string{"Описание: Не печатает", "Создал: Пётр", "Ответственный: Иван", "Статус: " + models.StatusInProgress.Label()} {
		if !strings.Contains(m.Body, want) {
			t.Errorf("Body missing %q:\n%s", want, m.Body)
		}
	}

	task := sampleTask()
	task.AssignedTo = nil
	if strings.Contains(CreatedMessage(task).Body, "Ответственный") {
		t.Error("unassigned task should not list an assignee")
	}
}

func TestStatusChangedMessage(t *testing.T) {
	m := StatusChangedMessage(sampleTask(), models.StatusNew)
	if m.Title != "Обновление задачи TASK-240305-0001" {
		t.Errorf("Title = %q", m.Title)
	}
	for _, want := range []string{
		"Прошлый статус: " + models.StatusNew.Label(),
		"Новый статус: " + models.StatusInProgress.Label(),
		"Текущий прогресс: 30%",
	} {
		if !strings.Contains(m.Body, want) {
			t.Errorf("Body missing %q:\n%s", want, m.Body)
		}
	}
}

func TestDigestMessage(t *testing.T) {
	a, b := sampleTask(), sampleTask()
	b.Number = "TASK-240305-0002"
	m := DigestMessage([]models.Task{a, b})
	lines := strings.Split(m.Body, "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[2], "- TASK-240305-0002: Принтер (создал Пётр") {
		t.Errorf("line = %q", lines[2])
	}
}

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	a, b := &fakeSink{name: "a"}, &fakeSink{name: "b"}
	d := NewDispatcher(DispatcherConfig{Logger: quietLogger()}, a, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.NotifyCreated(sampleTask())
	d.NotifyStatusChanged(sampleTask(), models.StatusNew)
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, s := range []*fakeSink{a, b} {
		got := s.messages()
		if len(got) != 2 || got[0].Kind != KindTaskCreated || got[1].Kind != KindStatusChanged {
			t.Errorf("sink %s got %+v", s.name, got)
		}
	}
	if st := d.Stats(); st.Submitted != 2 || st.Delivered != 4 || st.Failed != 0 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestDispatcher_RetriesThenGivesUp(t *testing.T) {
	flaky := &fakeSink{name: "flaky", failN: 2}
	dead := &fakeSink{name: "dead", failN: 100}
	d := NewDispatcher(DispatcherConfig{MaxAttempts: 3, RetryDelay: time.Millisecond, Logger: quietLogger()}, flaky, dead)

	d.Submit(Message{Kind: KindDigest, Title: "t"})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(flaky.messages()) != 1 || flaky.calls != 3 {
		t.Errorf("flaky calls=%d got=%d", flaky.calls, len(flaky.messages()))
	}
	if dead.calls != 3 {
		t.Errorf("dead calls = %d, want 3", dead.calls)
	}
	if st := d.Stats(); st.Delivered != 1 || st.Failed != 1 {
		t.Errorf("Stats = %+v", st)
	}
}

// blockingSink holds every send until released.
type blockingSink struct {
	release chan struct{}
}

func (blockingSink) Name() string { return "blocking" }

func (s blockingSink) Send(ctx context.Context, _ Message) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestDispatcher_SubmitNeverBlocks(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{QueueSize: 2, Logger: quietLogger()}, sink)

	start := time.Now()
	accepted := 0
	for i := 0; i < 5; i++ {
		if d.Submit(Message{Kind: KindDigest}) {
			accepted++
		}
	}
	if time.Since(start) > time.Second {
		t.Error("Submit blocked")
	}
	if accepted != 2 {
		t.Errorf("accepted = %d, want 2", accepted)
	}
	if st := d.Stats(); st.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", st.Dropped)
	}
	close(sink.release)
	d.Close(context.Background())
}

func TestDispatcher_CloseRejectsAndTimesOut(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{Logger: quietLogger()}, sink)
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(runCtx)
	d.Submit(Message{Kind: KindDigest})

	// Give Run a moment to pick the message up.
	time.Sleep(20 * time.Millisecond)
	ctx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close = %v, want deadline exceeded", err)
	}
	if d.Submit(Message{Kind: KindDigest}) {
		t.Error("Submit after Close accepted")
	}
	close(sink.release)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	if err := s.Send(context.Background(), CreatedMessage(sampleTask())); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(buf.String(), "task=TASK-240305-0001") {
		t.Errorf("log = %q", buf.String())
	}
}

func TestSlackSink(t *testing.T) {
	if _, err := NewSlackSink("http://insecure"); err == nil {
		t.Error("http webhook should be rejected")
	}
	s, err := NewSlackSink("https://hooks.slack.com/services/T/B/X")
	if err != nil {
		t.Fatalf("NewSlackSink: %v", err)
	}
	var gotURL, gotText string
	s.post = func(_ context.Context, url string, msg *slack.WebhookMessage) error {
		gotURL, gotText = url, msg.Text
		return nil
	}
	if err := s.Send(context.Background(), Message{Title: "T", Body: "B"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotURL != "https://hooks.slack.com/services/T/B/X" || gotText != "*T*\nB" {
		t.Errorf("posted %q to %q", gotText, gotURL)
	}

	s.post = func(context.Context, string, *slack.WebhookMessage) error { return errors.New("503") }
	if err := s.Send(context.Background(), Message{}); err == nil || !strings.Contains(err.Error(), "slack") {
		t.Errorf("Send error = %v", err)
	}
}

type fakeExecutor struct {
	id, token string
	params    *discordgo.WebhookParams
}

func (f *fakeExecutor) WebhookExecute(id, token string, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.id, f.token, f.params = id, token, data
	return nil, nil
}

func TestParseDiscordWebhook(t *testing.T) {
	tests := []struct {
		url       string
		id, token string
		ok        bool
	}{
		{"https://discord.com/api/webhooks/123/abc", "123", "abc", true},
		{"https://discordapp.com/api/v10/webhooks/9/tok/", "9", "tok", true},
		{"https://discord.com/api/channels/123", "", "", false},
		{"https://discord.com/api/webhooks/123", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		id, token, err := parseDiscordWebhook(tt.url)
		if (err == nil) != tt.ok || id != tt.id || token != tt.token {
			t.Errorf("parseDiscordWebhook(%q) = %q, %q, %v", tt.url, id, token, err)
		}
	}
}

func TestDiscordSink_Send(t *testing.T) {
	exec := &fakeExecutor{}
	s := &DiscordSink{id: "1", token: "t", exec: exec}
	long := strings.Repeat("я", 3000)
	if err := s.Send(context.Background(), Message{Title: "T", Body: long}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if exec.id != "1" || exec.token != "t" {
		t.Errorf("executed %s/%s", exec.id, exec.token)
	}
	if n := len([]rune(exec.params.Content)); n != discordMaxContent {
		t.Errorf("content length = %d, want %d", n, discordMaxContent)
	}
	if !strings.HasPrefix(exec.params.Content, "**T**\n") {
		t.Errorf("content = %q...", exec.params.Content[:20])
	}
}

type fakeTasks struct {
	tasks []models.Task
	err   error
}

func (f fakeTasks) UnassignedActive(context.Context) ([]models.Task, error) { return f.tasks, f.err }

type collector struct {
	msgs   []Message
	refuse bool
}

func (c *collector) Submit(m Message) bool {
	if c.refuse {
		return false
	}
	c.msgs = append(c.msgs, m)
	return true
}

func TestDigest_RunOnce(t *testing.T) {
	ctx := context.Background()
	out := &collector{}

	sent, err := NewDigest(fakeTasks{}, out, quietLogger()).RunOnce(ctx)
	if err != nil || sent || len(out.msgs) != 0 {
		t.Errorf("empty digest: sent=%v err=%v msgs=%d", sent, err, len(out.msgs))
	}

	sent, err = NewDigest(fakeTasks{tasks: []models.Task{sampleTask()}}, out, quietLogger()).RunOnce(ctx)
	if err != nil || !sent || len(out.msgs) != 1 || out.msgs[0].Kind != KindDigest {
		t.Errorf("digest: sent=%v err=%v msgs=%+v", sent, err, out.msgs)
	}

	if _, err := NewDigest(fakeTasks{err: errors.New("db")}, out, quietLogger()).RunOnce(ctx); err == nil {
		t.Error("source error should surface")
	}
	if _, err := NewDigest(fakeTasks{tasks: []models.Task{sampleTask()}}, &collector{refuse: true}, quietLogger()).RunOnce(ctx); err == nil {
		t.Error("refused submit should surface")
	}
}

func TestDigest_Schedule(t *testing.T) {
	d := NewDigest(fakeTasks{}, &collector{}, quietLogger())
	if err := d.Schedule(""); err != nil {
		t.Errorf("Schedule(default): %v", err)
	}
	if err := d.Schedule("*/5 * * * *"); err != nil {
		t.Errorf("Schedule(every 5m): %v", err)
	}
	if err := d.Schedule("0 0 9 * * *"); err == nil {
		t.Error("six-field spec should be rejected")
	}
	d.Start()
	<-d.Stop().Done()
}

func TestDigest_ScheduleMatchesStandardParser(t *testing.T) {
	tests := []string{
		"0 9 * * *",
		"30 8 * * 1-5",
		"@daily",
		"@every 1h",
		"CRON_TZ=UTC 0 9 * * *",
		"0 0 9 * * *",
		"every morning",
	}
	for _, spec := range tests {
		t.Run(spec, func(t *testing.T) {
			_, stdErr := cron.ParseStandard(spec)
			err := NewDigest(fakeTasks{}, &collector{}, quietLogger()).Schedule(spec)
			if (err == nil) != (stdErr == nil) {
				t.Errorf("Schedule(%q) err = %v, ParseStandard err = %v", spec, err, stdErr)
			}
		})
	}
}
