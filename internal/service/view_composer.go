package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/wastewatch-api/internal/dto"
	"github.com/noah-isme/wastewatch-api/internal/models"
)

const defaultComposeConcurrency = 8

type authorLookup interface {
	GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error)
}

type mediaResolver interface {
	ResolveURL(ctx context.Context, id *string) (*string, error)
}

// ViewComposer enriches raw reports and comments with author names and resolved image URLs.
// It never writes.
type ViewComposer struct {
	profiles      authorLookup
	media         mediaResolver
	anonymousName string
	concurrency   int
}

// NewViewComposer constructs a composer. concurrency bounds per-call fan-out.
func NewViewComposer(profiles authorLookup, media mediaResolver, anonymousName string, concurrency int) *ViewComposer {
	if concurrency <= 0 {
		concurrency = defaultComposeConcurrency
	}
	if anonymousName == "" {
		anonymousName = "Usuário Anônimo"
	}
	return &ViewComposer{profiles: profiles, media: media, anonymousName: anonymousName, concurrency: concurrency}
}

type authorView struct {
	name     string
	imageURL *string
}

// author resolves the display identity of userID, falling back to the anonymous name
// when there is no profile or the profile has no display name.
func (v *ViewComposer) author(ctx context.Context, userID string) (authorView, error) {
	profile, err := v.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authorView{name: v.anonymousName}, nil
		}
		return authorView{}, fmt.Errorf("lookup author %s: %w", userID, err)
	}
	view := authorView{name: profile.DisplayName}
	if view.name == "" {
		view.name = v.anonymousName
	}
	if view.imageURL, err = v.media.ResolveURL(ctx, profile.ProfileImageID); err != nil {
		return authorView{}, err
	}
	return view, nil
}

func (v *ViewComposer) composeReport(ctx context.Context, report models.WasteReport) (dto.ReportView, error) {
	var (
		author   authorView
		imageURL *string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		author, err = v.author(gctx, report.UserID)
		return err
	})
	g.Go(func() (err error) {
		imageURL, err = v.media.ResolveURL(gctx, report.ImageID)
		return err
	})
	if err := g.Wait(); err != nil {
		return dto.ReportView{}, err
	}
	return dto.ReportView{
		WasteReport:       report,
		CreatedByName:     author.name,
		CreatedByImageURL: author.imageURL,
		ImageURL:          imageURL,
	}, nil
}

func (v *ViewComposer) composeComment(ctx context.Context, comment models.Comment) (dto.CommentView, error) {
	author, err := v.author(ctx, comment.UserID)
	if err != nil {
		return dto.CommentView{}, err
	}
	return dto.CommentView{Comment: comment, UserName: author.name, UserImageURL: author.imageURL}, nil
}

// ComposeReports enriches reports, preserving input order.
func (v *ViewComposer) ComposeReports(ctx context.Context, reports []models.WasteReport) ([]dto.ReportView, error) {
	return composeAll(ctx, reports, v.concurrency, v.composeReport)
}

// ComposeComments enriches comments, preserving input order.
func (v *ViewComposer) ComposeComments(ctx context.Context, comments []models.Comment) ([]dto.CommentView, error) {
	return composeAll(ctx, comments, v.concurrency, v.composeComment)
}

// ComposeReport enriches a single report together with its comments.
func (v *ViewComposer) ComposeReport(ctx context.Context, report models.WasteReport, comments []models.Comment) (*dto.ReportDetail, error) {
	var (
		view  dto.ReportView
		views []dto.CommentView
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view, err = v.composeReport(gctx, report)
		return err
	})
	g.Go(func() (err error) {
		views, err = v.ComposeComments(gctx, comments)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &dto.ReportDetail{ReportView: view, Comments: views}, nil
}

// composeAll maps items through fn with at most limit calls in flight.
// Results are written by index so completion order never affects output order.
func composeAll[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(items))
	if len(items) == 0 {
		return out, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range items {
		i := i
		g.Go(func() error {
			r, err := fn(gctx, items[i])
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
