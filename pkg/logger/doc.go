// Package logger builds *slog.Logger values for the access control packages
// and provides attribute helpers that keep key names consistent.
//
// New creates a JSON or text handler with static attributes. Registered
// ContextExtractor callbacks run on every record, for example to add the
// running command stored in the context.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithEnvironment(os.Getenv("APP_ENV"), "aclctl"),
//	    logger.WithContextValue("command", commandKey{}),
//	)
//
//	log.InfoContext(ctx, "acl: granted",
//	    logger.EntityType("folder"),
//	    logger.EntityID("f1"),
//	    logger.Subject(acl.User("u1")),
//	    logger.Mask(permission.Update),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
