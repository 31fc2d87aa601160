package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/dmitrymomot/entityacl/pkg/acl"
	"github.com/dmitrymomot/entityacl/pkg/permission"
)

type checkRequest struct {
	users      []string
	mask       permission.Mask
	entityType acl.EntityType
	entityID   string
}

// parseCheckArgs reads <user[,user...]> <mask> <type> [id].
func parseCheckArgs(args []string) (checkRequest, error) {
	if len(args) < 3 || len(args) > 4 {
		return checkRequest{}, usage("check needs <user[,user...]> <mask> <type> [id]")
	}
	var req checkRequest
	for u := range strings.SplitSeq(args[0], ",") {
		if u = strings.TrimSpace(u); u != "" {
			req.users = append(req.users, u)
		}
	}
	if len(req.users) == 0 {
		return checkRequest{}, usage("no user ids given")
	}
	mask, err := permission.Parse(args[1])
	if err != nil {
		return checkRequest{}, usage("mask %q: %v", args[1], err)
	}
	if mask == permission.None {
		return checkRequest{}, usage("mask must not be none")
	}
	req.mask = mask
	if args[2] == "" {
		return checkRequest{}, usage("entity type is required")
	}
	req.entityType = acl.EntityType(args[2])
	if len(args) == 4 {
		req.entityID = args[3]
	}
	return req, nil
}

func runCheck(ctx context.Context, a *app, args []string) error {
	fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
	useCache := fs.Bool("cache", false, "answer through the Redis check cache ($REDIS_URL)")
	concurrency := fs.Int("concurrency", 0, "parallel checks for several users (default $ACL_CHECK_CONCURRENCY)")
	if err := parseFlags(a, fs, "check [flags] <user[,user...]> <mask> <type> [id]", args); err != nil {
		return err
	}
	req, err := parseCheckArgs(fs.Args())
	if err != nil {
		return err
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

	var checker acl.Checker = engine
	if *useCache {
		cached, closeCache, err := a.cache(ctx, engine)
		if err != nil {
			return err
		}
		defer closeCache()
		checker = cached
	}

	limit := *concurrency
	if limit <= 0 {
		limit = engine.CheckConcurrency()
	}
	results, err := acl.CheckMany(ctx, checker, limit, req.users, req.mask, req.entityType, req.entityID)
	if err != nil {
		return err
	}
	return report(a, req, results)
}

// report prints one line per user and fails with exitDenied when any user
// lacks the permission.
func report(a *app, req checkRequest, results []acl.CheckResult) error {
	target := string(req.entityType)
	if req.entityID != acl.Global {
		target += "/" + req.entityID
	}
	denied := 0
	for _, r := range results {
		verdict := "allowed"
		if !r.Value {
			verdict = "denied"
			denied++
		}
		fmt.Fprintf(a.stdout, "%s\t%s\t%s\t%s\n", r.ID, req.mask, target, verdict)
	}
	if denied > 0 {
		return &exitError{code: exitDenied}
	}
	return nil
}
