package verifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/pagecheck-service/internal/entity"
	"github.com/user/pagecheck-service/internal/repository"
	"github.com/user/pagecheck-service/internal/scenario"
)

// CaptureSnapshot waits for the listing container and records its titles
// and dates as logical page pageIndex.
func (v *Verifier) CaptureSnapshot(ctx context.Context, sess repository.Session, listing *scenario.Listing, pageIndex int) (entity.PageSnapshot, error) {
	if err := sess.WaitVisible(ctx, repository.CSS(listing.Container), v.opts.VisibilityTimeout); err != nil {
		return entity.PageSnapshot{}, fmt.Errorf("listing container %s: %w", listing.Container, err)
	}
	html, err := sess.OuterHTML(ctx, listing.Container)
	if err != nil {
		return entity.PageSnapshot{}, fmt.Errorf("read listing container: %w", err)
	}
	u, err := sess.URL(ctx)
	if err != nil {
		return entity.PageSnapshot{}, fmt.Errorf("read location: %w", err)
	}

	snap, err := ExtractSnapshot(html, listing, pageIndex)
	if err != nil {
		return entity.PageSnapshot{}, err
	}
	snap.URL = u
	return snap, nil
}

// ExtractSnapshot parses a listing container's HTML. Titles and dates are
// queried independently and each keeps document order.
func ExtractSnapshot(html string, listing *scenario.Listing, pageIndex int) (entity.PageSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return entity.PageSnapshot{}, fmt.Errorf("parse listing html: %w", err)
	}

	snap := entity.PageSnapshot{
		PageIndex:  pageIndex,
		Titles:     []string{},
		Dates:      []string{},
		CapturedAt: time.Now().UTC(),
	}
	doc.Find(listing.Title).Each(func(_ int, s *goquery.Selection) {
		snap.Titles = append(snap.Titles, strings.TrimSpace(s.Text()))
	})
	doc.Find(listing.Date).Each(func(_ int, s *goquery.Selection) {
		snap.Dates = append(snap.Dates, ExtractDate(listing.DateRegexp(), s.Text()))
	})
	return snap, nil
}
