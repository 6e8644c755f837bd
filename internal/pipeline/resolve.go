package pipeline

import (
	"context"
	"fmt"
	"sync"

	"foley/internal/assetcache"
	"foley/internal/compositor"
	"foley/internal/logging"
	"foley/internal/services"
	"foley/internal/trigger"
)

type resolution struct {
	asset assetcache.Asset
	err   error
	done  bool
}

// resolve fetches an asset per event and builds the timeline in event order.
// Event-scoped failures become drops. On cancellation or another fatal
// failure it returns the entries resolved so far with that error.
func (p *Pipeline) resolve(ctx context.Context, session *Session, events []trigger.Event, parallel bool, report *Report) ([]compositor.Entry, error) {
	results := make([]resolution, len(events))
	if parallel {
		p.resolveByCategory(ctx, session, events, results)
	} else {
		p.resolveSequential(ctx, session, events, results)
	}

	var fatal error
	timeline := make([]compositor.Entry, 0, len(events))
	for i, ev := range events {
		res := results[i]
		if !res.done {
			continue
		}
		if res.err != nil {
			if services.Fatal(res.err) {
				if fatal == nil {
					fatal = res.err
				}
				continue
			}
			p.logDrop(ctx, report.drop(ev.Category, ev.Start, res.err), res.err)
			continue
		}
		cat, _ := p.catalog.Lookup(ev.Category)
		entry := compositor.Entry{
			Category:   ev.Category,
			AssetPath:  res.asset.Path,
			PositionMS: positionMS(ev.Start),
			VolumeDB:   cat.VolumeDB,
		}
		if ev.Duration > 0 {
			entry.TargetMS = positionMS(ev.Duration)
		}
		timeline = append(timeline, entry)
		report.Placed = append(report.Placed, Placed{
			Event:     ev,
			AssetPath: res.asset.Path,
			Cached:    res.asset.Cached,
			Position:  res.asset.Position,
		})
		if res.asset.Cached {
			report.CacheHits++
		} else {
			report.FreshDownloads++
		}
	}

	logging.WithContext(ctx, p.logger).Info("assets resolved",
		logging.String(logging.FieldEventType, "assets_resolved"),
		logging.Int("events", len(events)),
		logging.Int("placed", len(timeline)),
		logging.Int("cache_hits", report.CacheHits),
		logging.Int("fresh_downloads", report.FreshDownloads),
		logging.Bool("parallel", parallel),
	)
	if err := ctx.Err(); err != nil {
		return timeline, err
	}
	return timeline, fatal
}

func (p *Pipeline) resolveSequential(ctx context.Context, session *Session, events []trigger.Event, results []resolution) {
	for i, ev := range events {
		if ctx.Err() != nil {
			return
		}
		results[i] = p.resolveOne(ctx, session, ev)
	}
}

// resolveByCategory runs one worker per category so events of a category
// keep their order and rotation sequence. Outbound fetches are bounded by
// the resolver.
func (p *Pipeline) resolveByCategory(ctx context.Context, session *Session, events []trigger.Event, results []resolution) {
	groups := make(map[string][]int)
	order := make([]string, 0)
	for i, ev := range events {
		if _, ok := groups[ev.Category]; !ok {
			order = append(order, ev.Category)
		}
		groups[ev.Category] = append(groups[ev.Category], i)
	}

	var wg sync.WaitGroup
	for _, category := range order {
		indexes := groups[category]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, i := range indexes {
				if ctx.Err() != nil {
					return
				}
				results[i] = p.resolveOne(ctx, session, events[i])
			}
		}()
	}
	wg.Wait()
}

func (p *Pipeline) resolveOne(ctx context.Context, session *Session, ev trigger.Event) resolution {
	cat, ok := p.catalog.Lookup(ev.Category)
	if !ok {
		err := services.Wrap(services.ErrAssetUnavailable, StageAssets, "lookup", fmt.Sprintf("unknown category %q", ev.Category), nil)
		return resolution{err: err, done: true}
	}
	if p.resolver == nil {
		return resolution{err: services.Wrap(services.ErrAssetUnavailable, StageAssets, "resolve", "no resolver configured", nil), done: true}
	}
	asset, err := p.resolver.Resolve(services.WithCategory(ctx, cat.ID), session.Rotation, cat)
	return resolution{asset: asset, err: err, done: true}
}
