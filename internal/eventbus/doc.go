// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package eventbus is an in-process broadcast channel.
//
// Every Subscription owns a bounded ring. Publish never blocks: when a ring is full
// the oldest event in it is dropped, and the subscriber's next Recv returns a
// *LaggedError carrying the number of events it missed before resuming from the
// oldest event still retained. Subscribers never see events published before they
// subscribed.
package eventbus
