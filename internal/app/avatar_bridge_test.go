package app_test

import (
	"context"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/avatar"
)

func TestDriveAvatarFollowsSession(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	session, err := service.StartSession(ctx, app.StartRequest{UserID: "u1", LessonID: "lesson-1", Language: "en"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	events, cancel, err := service.Subscribe(session.ID())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	machine := avatar.NewMachine()
	done := make(chan struct{})
	go func() {
		app.DriveAvatar(ctx, events, machine, avatar.Rect{X: 300, Y: 100})
		close(done)
	}()

	waitFor(t, func() bool { return machine.State().Mode == avatar.ModeAssessment })
	if _, err := service.Answer(session.ID(), 0, 0); err != nil {
		t.Fatalf("answer: %v", err)
	}
	waitFor(t, func() bool { return machine.State().Emotion == avatar.Happy })

	if err := service.CloseSession(ctx, session.ID()); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("driver did not stop after close")
	}
	if machine.State().Mode != avatar.ModeIdle {
		t.Fatalf("expected idle after close, got %+v", machine.State())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
