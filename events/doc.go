// SPDX-License-Identifier: EPL-2.0

// Package events carries typed lifecycle and progress notifications from
// the engine components to their callers.
//
// Each component defines its own event struct and tags it with a Topic;
// consumers subscribe to a Bus and type-switch on what they receive.
package events
