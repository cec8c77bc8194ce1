// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package transcode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lifecycle(t *testing.T) {
	bin, _ := fakeFFmpeg(t, scriptEndless)
	tr := newTestTranscoder(bin, time.Second)
	reg := NewRegistry()

	var sessions []*Session
	for _, id := range []string{"task-a", "task-b"} {
		s, err := tr.Start(context.Background(), Spec{
			TaskID:   id,
			ClientID: "10.2.2.2",
			URL:      "https://origin.example/" + id,
		})
		require.NoError(t, err)
		reg.Register(s)
		sessions = append(sessions, s)
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, 2, reg.Len())
	assert.Same(t, sessions[0], reg.Get("task-a"))
	assert.Nil(t, reg.Get("missing"))

	list := reg.List("10.2.2.2")
	require.Len(t, list, 2)
	assert.Equal(t, "task-a", list[0].TaskID)
	assert.Equal(t, "running", list[0].State)
	assert.Equal(t, "10.2.2.2", list[0].Client)
	assert.Len(t, reg.List(""), 2)
	assert.Empty(t, reg.List("10.9.9.9"))

	assert.Same(t, sessions[0], reg.Owned("task-a", "10.2.2.2"))
	assert.Nil(t, reg.Owned("task-a", "10.9.9.9"))
	assert.False(t, reg.Cancel("task-a", "10.9.9.9"), "another client's session is not cancelable")
	assert.Equal(t, StateRunning, sessions[0].State())

	assert.True(t, reg.Cancel("task-a", "10.2.2.2"))
	assert.False(t, reg.Cancel("task-a", "10.2.2.2"))
	assert.Equal(t, StateTerminated, sessions[0].State())
	assert.Equal(t, 1, reg.Len())

	reg.CloseAll()
	assert.Equal(t, 0, reg.Len())
	assert.True(t, sessions[1].State().Terminal())
}

func TestRegistry_UnregisterFromHook(t *testing.T) {
	bin, _ := fakeFFmpeg(t, scriptFinite)
	tr := newTestTranscoder(bin, time.Second)
	reg := NewRegistry()

	s, err := tr.Start(context.Background(), Spec{
		TaskID:  "task-hook",
		URL:     "https://origin.example/v.mp4",
		OnClose: func() { reg.Unregister("task-hook") },
	})
	require.NoError(t, err)
	reg.Register(s)

	s.Stream(context.Background(), &flushBuffer{})

	assert.Nil(t, reg.Get("task-hook"))
}
