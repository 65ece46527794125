package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/dinein-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "pos-prod"}
	cases := map[string]string{
		"realtime-changes":                       "projects/pos-prod/topics/realtime-changes",
		"  realtime-changes ":                    "projects/pos-prod/topics/realtime-changes",
		"projects/other/topics/realtime-changes": "projects/other/topics/realtime-changes",
		"":                                       "",
	}
	for in, want := range cases {
		if got := c.topicResourceName(in); got != want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewClientRequiresProjectAndTopic(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{ChangesTopic: "x"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil); err != errTopicRequired {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping on nil client to fail")
	}
	if _, err := c.Publish(context.Background(), []byte("{}"), nil); err == nil {
		t.Fatal("expected publish on nil client to fail")
	}
}
