package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/logging"
	"SocialPoster/internal/ports"
)

type stubPublisher struct {
	platform domain.Platform
	fail     map[domain.AccountType]bool
	panics   bool
	got      []string
}

func (s *stubPublisher) Platform() domain.Platform { return s.platform }

func (s *stubPublisher) Publish(_ context.Context, content string, target domain.Profile) (string, error) {
	if s.panics {
		panic("boom")
	}
	s.got = append(s.got, content)
	if s.fail[target.AccountType] {
		return "", errors.New("api rejected post")
	}
	return "urn:post:" + string(target.AccountType), nil
}

type mapRegistry map[domain.Platform]ports.Publisher

func (m mapRegistry) Publisher(p domain.Platform) (ports.Publisher, bool) {
	pub, ok := m[p]
	return pub, ok
}

func TestDispatcherRecordsEachTargetIndependently(t *testing.T) {
	t.Parallel()

	linkedin := &stubPublisher{platform: domain.PlatformLinkedIn, fail: map[domain.AccountType]bool{domain.AccountPersonal: true}}
	twitter := &stubPublisher{platform: domain.PlatformTwitter, panics: true}
	d := NewDispatcher(mapRegistry{domain.PlatformLinkedIn: linkedin, domain.PlatformTwitter: twitter}, logging.Discard())

	report := d.Dispatch(context.Background(), []Target{
		{Profile: domain.Profile{ID: 1, Platform: domain.PlatformLinkedIn, AccountType: domain.AccountPersonal}, PostID: 10, Content: "long"},
		{Profile: domain.Profile{ID: 2, Platform: domain.PlatformTwitter, AccountType: domain.AccountPersonal}, PostID: 11, Content: "short"},
		{Profile: domain.Profile{ID: 3, Platform: domain.PlatformTelegram, AccountType: domain.AccountPersonal}, PostID: 10, Content: "long"},
		{Profile: domain.Profile{ID: 4, Platform: domain.PlatformLinkedIn, AccountType: domain.AccountOrganization}, PostID: 10, Content: "long"},
	})

	if report.Succeeded != 1 || report.Failed != 3 || len(report.Results) != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !strings.Contains(report.Results[1].Error, "panic") {
		t.Fatalf("panic should be recorded as failure: %+v", report.Results[1])
	}
	if !strings.Contains(report.Results[2].Error, ErrNoPublisher.Error()) {
		t.Fatalf("missing publisher should be recorded: %+v", report.Results[2])
	}
	last := report.Results[3]
	if last.Status != domain.PublishSuccess || last.PlatformPostID != "urn:post:organization" || last.PostedAt == nil || last.ProfileID != 4 {
		t.Fatalf("unexpected success result: %+v", last)
	}
}
