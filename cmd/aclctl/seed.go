package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/seed"
)

func runSeed(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "validate the file without touching the database")
	invalidate := fs.Bool("invalidate-cache", false, "bump the Redis check cache for every seeded entity type")
	if err := parseFlags(a, fs, "seed [flags] <file>", args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usage("seed needs exactly one file")
	}

	doc, err := seed.LoadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	if *dryRun {
		fmt.Fprintf(a.stdout, "ok: %d roles, %d grants, %d owners, %d bans\n",
			len(doc.Roles), len(doc.Grants), len(doc.Owners), len(doc.Bans))
		return nil
	}

	pool, _, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	engine, _, err := a.engine(pool)
	if err != nil {
		return err
	}
	st, err := seed.Apply(ctx, engine, doc)
	if err != nil {
		return err
	}
	a.log.InfoContext(ctx, "seed applied",
		slog.Int("roles", st.Roles),
		slog.Int("members", st.Members),
		slog.Int("grants", st.Grants),
		slog.Int("owners", st.Owners),
		slog.Int("bans", st.Bans),
	)
	fmt.Fprintf(a.stdout, "applied: %d roles, %d members, %d grants, %d owners, %d bans\n",
		st.Roles, st.Members, st.Grants, st.Owners, st.Bans)

	if !*invalidate {
		return nil
	}
	checker, closeCache, err := a.cache(ctx, engine)
	if err != nil {
		return err
	}
	defer closeCache()
	if len(doc.Roles) > 0 {
		return checker.InvalidateAll(ctx)
	}
	for _, t := range entityTypes(doc) {
		if err := checker.Invalidate(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// entityTypes lists the distinct entity types a document touches, in order
// of first appearance.
func entityTypes(d *seed.Document) []acl.EntityType {
	seen := map[acl.EntityType]bool{}
	var out []acl.EntityType
	add := func(t string) {
		if et := acl.EntityType(t); !seen[et] {
			seen[et] = true
			out = append(out, et)
		}
	}
	for _, o := range d.Owners {
		add(o.EntityType)
	}
	for _, g := range d.Grants {
		add(g.EntityType)
	}
	for _, b := range d.Bans {
		add(b.EntityType)
	}
	return out
}
