// Package pending holds actions published for devices until the devices
// collect them.
//
// Delivery is asynchronous: an action is pushed when it arrives from the
// bus or the API. Retrieval is synchronous: a device (or its gateway) pulls
// and receives every queued action at once. Pull removes what it returns,
// so each action is handed out at most once.
//
// Two implementations exist. Bridge keeps queues in process memory.
// RedisBridge keeps them in Redis lists so several hub replicas share them.
// Both satisfy store.Creator[telemetry.Action] (push) and store.ActionGetter
// (pull) and slot into store.ActionBackends.
package pending
