// Package ratelimit paces outbound LinkedIn traffic.
//
// TokenBucket spreads individual requests evenly and is shared by every
// request the client makes. SlidingWindow caps how many write actions
// (invitations, messages) may happen in a longer window such as an hour.
// Unlimited satisfies Limiter for tests and unthrottled clients.
//
// Basic Usage:
//
//	requests := ratelimit.NewPerMinute(30, 5)
//	actions := ratelimit.NewSlidingWindow(20, time.Hour)
//
//	if err := requests.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
