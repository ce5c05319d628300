package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestThreadIDs_FiltersByForum(t *testing.T) {
	threads := []*discordgo.Channel{
		{ID: "T1", ParentID: "forum-1"},
		{ID: "T2", ParentID: "other"},
		{ID: "T3", ParentID: "forum-1"},
	}

	got := threadIDs(threads, "forum-1")
	if len(got) != 2 || got[0] != "T1" || got[1] != "T3" {
		t.Errorf("threadIDs = %v", got)
	}
}

func TestNew_RequiresToken(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected error with empty token")
	}
}
