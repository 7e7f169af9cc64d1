package service

import (
	"context"
	"strings"
	"testing"
	"time"

	config "postpilot/configs"
	"postpilot/internal/models"
	"postpilot/internal/transfer"
)

type publishFixture struct {
	repo    *fakePostRepo
	history *fakeHistoryRepo
	client  *fakeInstagramClient
	svc     *publishService
}

func newPublishFixture(client *fakeInstagramClient) *publishFixture {
	cfg := config.Config{}
	cfg.Publisher.QuotaLimit = 25
	cfg.Publisher.QuotaCacheTTL = time.Minute
	cfg.Publisher.PollInterval = time.Second
	cfg.Publisher.PollAttempts = 5
	cfg.Publisher.ProgressGrace = time.Hour

	repo := newFakePostRepo()
	history := &fakeHistoryRepo{}
	accounts := &fakeAccountRepo{account: &models.SocialAccount{
		ID:        1,
		UserID:    7,
		OrgID:     3,
		Platform:  models.PlatformInstagram,
		AccountID: "ig_123",
	}}

	svc := &publishService{
		cfg:      cfg,
		pr:       repo,
		sa:       accounts,
		ph:       history,
		lc:       NewLifecycleService(repo),
		quota:    NewQuotaService(cfg, client),
		media:    &fakeMediaService{},
		client:   client,
		progress: NewProgressTracker(cfg.Publisher.ProgressGrace),
		sleep:    func(time.Duration) {},
	}
	return &publishFixture{repo: repo, history: history, client: client, svc: svc}
}

func TestPublishPostSuccess(t *testing.T) {
	client := &fakeInstagramClient{
		quota:       transfer.QuotaUsage{Used: 0, Limit: 25, Remaining: 25},
		containerID: "c1",
		statuses:    []transfer.ContainerStatus{transfer.ContainerInProgress, transfer.ContainerFinished},
		mediaID:     "m1",
	}
	f := newPublishFixture(client)
	f.repo.put(testPost("p1"))

	result := f.svc.PublishPost(context.Background(), "p1")
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.RemoteMediaID != "m1" {
		t.Fatalf("expected m1, got %s", result.RemoteMediaID)
	}

	post, _ := f.repo.GetByID(context.Background(), "p1")
	if post.Status != models.PostStatusPublished {
		t.Fatalf("expected published, got %s", post.Status)
	}
	if post.RemoteMediaID != "m1" || post.PublishedAt == 0 {
		t.Fatalf("publish bookkeeping missing: %+v", post)
	}
	if post.PublishAttempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", post.PublishAttempts)
	}

	if client.statusCalls != 2 {
		t.Fatalf("expected 2 status polls, got %d", client.statusCalls)
	}
	if len(f.history.entries) != 1 || f.history.entries[0].RemoteMediaID != "m1" {
		t.Fatalf("history not recorded: %+v", f.history.entries)
	}

	progress, ok := f.svc.Progress("p1")
	if !ok || progress.Step != models.StepCompleted || progress.Progress != 100 {
		t.Fatalf("expected completed progress, got %+v", progress)
	}
}

func TestPublishPostQuotaExhausted(t *testing.T) {
	client := &fakeInstagramClient{
		quota:       transfer.QuotaUsage{Used: 25, Limit: 25, Remaining: 0},
		containerID: "c1",
	}
	f := newPublishFixture(client)
	f.repo.put(testPost("p1"))

	result := f.svc.PublishPost(context.Background(), "p1")
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.ErrorMessage, "publish limit reached") {
		t.Fatalf("unexpected error: %s", result.ErrorMessage)
	}
	if client.createCalls != 0 {
		t.Fatal("quota exhaustion must stop before any container is created")
	}

	post, _ := f.repo.GetByID(context.Background(), "p1")
	if post.Status != models.PostStatusFailed {
		t.Fatalf("expected failed, got %s", post.Status)
	}
	if post.PublishAttempts != 1 {
		t.Fatalf("the attempt still counts, got %d", post.PublishAttempts)
	}
}

func TestPublishPostPollTimeout(t *testing.T) {
	client := &fakeInstagramClient{
		quota:       transfer.QuotaUsage{Used: 0, Limit: 25, Remaining: 25},
		containerID: "c1",
		// no scripted statuses: every poll reports in_progress
	}
	f := newPublishFixture(client)
	f.repo.put(testPost("p1"))

	result := f.svc.PublishPost(context.Background(), "p1")
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.ErrorMessage, "did not finish after 5 checks") {
		t.Fatalf("unexpected error: %s", result.ErrorMessage)
	}
	if client.statusCalls != 5 {
		t.Fatalf("expected poll budget exhausted, got %d calls", client.statusCalls)
	}
	if client.publishCalls != 0 {
		t.Fatal("a timed out container must not be published")
	}

	post, _ := f.repo.GetByID(context.Background(), "p1")
	if post.Status != models.PostStatusFailed || post.PublishAttempts != 1 {
		t.Fatalf("expected one failed attempt, got %+v", post)
	}
}

func TestPublishPostMediaRejected(t *testing.T) {
	client := &fakeInstagramClient{
		quota:       transfer.QuotaUsage{Used: 0, Limit: 25, Remaining: 25},
		containerID: "c1",
		statuses:    []transfer.ContainerStatus{transfer.ContainerError},
	}
	f := newPublishFixture(client)
	f.repo.put(testPost("p1"))

	result := f.svc.PublishPost(context.Background(), "p1")
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.ErrorMessage, "rejected the media") {
		t.Fatalf("unexpected error: %s", result.ErrorMessage)
	}
	if client.publishCalls != 0 {
		t.Fatal("a rejected container must not be published")
	}
}

func TestPublishPostCarousel(t *testing.T) {
	client := &fakeInstagramClient{
		quota:       transfer.QuotaUsage{Used: 0, Limit: 25, Remaining: 25},
		containerID: "car1",
		statuses:    []transfer.ContainerStatus{transfer.ContainerFinished},
		mediaID:     "m2",
	}
	f := newPublishFixture(client)
	post := testPost("p1")
	post.RemoteContentType = models.RemoteTypeCarousel
	post.ImageURL = ""
	post.CarouselImageURLs = []string{
		"https://cdn.example.com/1.jpg",
		"https://cdn.example.com/2.jpg",
	}
	f.repo.put(post)

	result := f.svc.PublishPost(context.Background(), "p1")
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.RemoteMediaID != "m2" {
		t.Fatalf("expected m2, got %s", result.RemoteMediaID)
	}
}

func TestPublishPostSkipsWhenAlreadyPublishing(t *testing.T) {
	client := &fakeInstagramClient{
		quota:       transfer.QuotaUsage{Used: 0, Limit: 25, Remaining: 25},
		containerID: "c1",
		statuses:    []transfer.ContainerStatus{transfer.ContainerFinished},
		mediaID:     "m1",
	}
	f := newPublishFixture(client)
	post := testPost("p1")
	post.Status = models.PostStatusPublishing
	f.repo.put(post)

	result := f.svc.PublishPost(context.Background(), "p1")
	if result.Success {
		t.Fatal("expected skip")
	}
	if client.createCalls != 0 || client.publishCalls != 0 {
		t.Fatal("a skipped run must not touch the platform")
	}

	stored, _ := f.repo.GetByID(context.Background(), "p1")
	if stored.Status != models.PostStatusPublishing {
		t.Fatalf("skip must not change status, got %s", stored.Status)
	}
}

func TestPublishPostUnknownPost(t *testing.T) {
	f := newPublishFixture(&fakeInstagramClient{})

	result := f.svc.PublishPost(context.Background(), "missing")
	if result.Success || !strings.Contains(result.ErrorMessage, "does not exist") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPublishPostNoConnectedAccount(t *testing.T) {
	client := &fakeInstagramClient{quota: transfer.QuotaUsage{Remaining: 25, Limit: 25}}
	f := newPublishFixture(client)
	f.svc.sa = &fakeAccountRepo{}
	f.repo.put(testPost("p1"))

	result := f.svc.PublishPost(context.Background(), "p1")
	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.ErrorMessage, "not connected") {
		t.Fatalf("unexpected error: %s", result.ErrorMessage)
	}

	post, _ := f.repo.GetByID(context.Background(), "p1")
	if post.Status != models.PostStatusFailed {
		t.Fatalf("expected failed, got %s", post.Status)
	}
}

func TestBuildCaption(t *testing.T) {
	post := testPost("p1")
	post.Caption = "Launch day"
	post.Hashtags = []string{"#go", "#release"}
	if got := buildCaption(post); got != "Launch day\n\n#go #release" {
		t.Fatalf("unexpected caption: %q", got)
	}

	post.Hashtags = nil
	if got := buildCaption(post); got != "Launch day" {
		t.Fatalf("unexpected caption: %q", got)
	}

	post.Caption = "  "
	post.Hashtags = []string{"#go"}
	if got := buildCaption(post); got != "#go" {
		t.Fatalf("unexpected caption: %q", got)
	}
}
