package service

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"zzik-backend/internal/model"
	"zzik-backend/internal/repository"
	"zzik-backend/pkg/metrics"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// RequiredHashtag must appear on every submitted post, alongside the
// mission's own id.
const RequiredHashtag = "zzik"

type ReelsInput struct {
	Platform string
	URL      string
	Hashtags []string
	Caption  string
}

// Per-platform host allow-lists and short-video path shapes. Generic post
// paths (e.g. instagram's /p/) are rejected even on an allowed host.
var reelsPlatforms = map[string]struct {
	hosts map[string]struct{}
	path  *regexp.Regexp
}{
	"instagram": {
		hosts: map[string]struct{}{"instagram.com": {}, "www.instagram.com": {}},
		path:  regexp.MustCompile(`^/reels?/[A-Za-z0-9_-]+/?$`),
	},
	"tiktok": {
		hosts: map[string]struct{}{"tiktok.com": {}, "www.tiktok.com": {}},
		path:  regexp.MustCompile(`^/@[A-Za-z0-9._-]+/video/[0-9]+/?$`),
	},
}

func (s *VerificationService) VerifyReels(ctx context.Context, runID uuid.UUID, userID int64, in ReelsInput) (*model.MissionRun, error) {
	run, err := s.verifyReels(ctx, runID, userID, in)
	if err != nil {
		metrics.VerificationRejected("reels")
		return nil, err
	}
	metrics.VerificationOK("reels")
	return run, nil
}

func (s *VerificationService) verifyReels(ctx context.Context, runID uuid.UUID, userID int64, in ReelsInput) (*model.MissionRun, error) {
	run, mission, err := s.loadOwnedRun(ctx, runID, userID, model.RunStatusPendingReels)
	if err != nil {
		return nil, err
	}
	if !mission.Spec.Reels {
		return nil, ErrMissionRunInvalidState
	}

	if err := validateReelURL(in.Platform, in.URL); err != nil {
		return nil, err
	}

	hashtags := normalizeHashtags(in.Hashtags)
	if err := requireHashtags(hashtags, mission.ID); err != nil {
		return nil, err
	}

	now := nowUTC()
	err = s.runs.AdvanceRunStatus(ctx, runID,
		model.RunStatusPendingReels, model.RunStatusPendingReview,
		repository.ColReelsUploadedAt, now,
		map[string]interface{}{
			"reels_url":      in.URL,
			"reels_hashtags": hashtags,
		})
	if err != nil {
		if errors.Is(err, repository.ErrRunStatusConflict) {
			return nil, ErrMissionRunInvalidState
		}
		return nil, fmt.Errorf("failed to advance run: %w", err)
	}

	s.publishTransition(run, model.RunStatusPendingReels, model.RunStatusPendingReview)

	run.Status = model.RunStatusPendingReview
	run.ReelsUploadedAt = &now
	run.UpdatedAt = now
	return run, nil
}

func validateReelURL(platform, rawURL string) error {
	rules, ok := reelsPlatforms[strings.ToLower(platform)]
	if !ok {
		return errors.Wrap(ErrReelsPlatformUnsupported, platform)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(ErrReelsURLInvalid, "unparseable url")
	}
	if u.Scheme != "https" {
		return errors.Wrap(ErrReelsURLInvalid, "scheme must be https")
	}
	if _, ok := rules.hosts[strings.ToLower(u.Host)]; !ok {
		return errors.Wrapf(ErrReelsURLInvalid, "host %q not allowed", u.Host)
	}
	if !rules.path.MatchString(u.Path) {
		return errors.Wrapf(ErrReelsURLInvalid, "path %q is not a short-video link", u.Path)
	}

	return nil
}

// normalizeHashtags lowercases tags and strips a leading '#'.
func normalizeHashtags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(tag, "#")))
		if tag != "" {
			normalized = append(normalized, tag)
		}
	}
	return normalized
}

func requireHashtags(normalized []string, missionID uuid.UUID) error {
	present := make(map[string]struct{}, len(normalized))
	for _, tag := range normalized {
		present[tag] = struct{}{}
	}

	for _, required := range []string{RequiredHashtag, strings.ToLower(missionID.String())} {
		if _, ok := present[required]; !ok {
			return errors.Wrapf(ErrReelsHashtagsMissing, "missing #%s", required)
		}
	}

	return nil
}
