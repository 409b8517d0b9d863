// Package telegram implements the outbound Telegram Bot API channel for
// tgcourier.
//
// It provides:
//
//   - A raw net/http + encoding/json Bot API client (getMe, sendMessage,
//     editMessageText)
//   - A delivery.Transport that maps Bot API failures onto delivery error
//     kinds (throttling, oversized text, rejected markup, unreachable chat)
//   - The process-wide delivery.Deliverer, published as the
//     "delivery.deliverer" service
//   - A getMe based health check, published with the module itself as the
//     "channel.telegram" service
//
// The module registers itself as "channel.telegram" via init() and implements
// the module lifecycle: Configure → Provision → Validate → Start → Stop.
// On reload only default_mode is applied; other settings need a restart.
package telegram
