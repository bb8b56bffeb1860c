// Package herald provides an Instagram comment and direct-message
// automation pipeline for Go.
//
// Herald is a library, not a service. Mount its webhook handler in your
// application and it turns each signed Instagram delivery into at most one
// automated response per event:
//
//   - Normalize: the raw delivery is split into comment and message events;
//     malformed entries are dropped and counted, echoes are ignored.
//   - Deduplicate: an atomic check-and-reserve on the event key suppresses
//     provider redeliveries for a TTL window (memory or Redis cache).
//   - Match: active rules of the receiving account are filtered (ownership,
//     capability, self, reply, post scope, keywords, trigger kind, new
//     follower) and the highest scoring rule wins.
//   - Respond: a durable natural-key claim prevents double sends, the
//     static or AI-generated text is sent with bounded retries, and a
//     trigger log row is appended after a successful send.
//
// Persistence is pluggable (Postgres, SQLite, MongoDB, Redis, Memory). The
// extension package builds Herald from YAML or environment configuration and
// mounts the admin API on a forge router.
//
// Quick start:
//
//	h, err := herald.New(
//	    herald.WithStore(memory.New()),
//	    herald.WithMessaging(messaging.NewGraphClient(messaging.GraphConfig{})),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	h.Start(ctx)
//	defer h.Stop(ctx)
//
//	http.Handle("/", api.NewHandler(h, api.Config{
//	    AppSecret:   os.Getenv("INSTAGRAM_APP_SECRET"),
//	    VerifyToken: os.Getenv("INSTAGRAM_VERIFY_TOKEN"),
//	}))
package herald
