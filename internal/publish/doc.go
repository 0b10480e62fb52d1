// Package publish delivers rendered episodes to connected social accounts.
//
// The stage handler claims publish jobs from the queue, opens the account's
// sealed access token, resolves a fetchable URL for the rendered video, and
// hands both to the platform adapter named by the account. Adapters exist
// for TikTok (Content Posting API pull-from-url), Instagram Reels (Graph
// container create/poll/publish), YouTube Shorts (Data API resumable
// upload), and Facebook Pages (Graph file_url upload).
//
// Platform-side failures are retryable: the queue re-runs the job with
// backoff and the post row stays at posting until the attempts run out.
// Missing credentials, unsupported platforms, and placeholder video URLs
// park the job immediately since retrying cannot fix them.
//
// Fanout is the enqueue side: it expands one approved episode into a post
// row plus queue job per target account.
package publish
