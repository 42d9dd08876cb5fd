// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/awcullen/uastack/ua"
)

const channelSweepInterval = 5 * time.Second

// ChannelManager tracks the open secure channels of a server and assigns their ids.
type ChannelManager struct {
	mu            sync.RWMutex
	server        *Server
	maxCount      uint32
	channelsByID  map[uint32]*serverSecureChannel
	lastChannelID atomic.Uint32
}

// NewChannelManager returns a manager that sweeps closed channels until the server closes,
// then closes the rest.
func NewChannelManager(server *Server) *ChannelManager {
	m := &ChannelManager{
		server:       server,
		maxCount:     server.maxChannelCount,
		channelsByID: make(map[uint32]*serverSecureChannel),
	}
	// ids start from the clock.
	m.lastChannelID.Store(uint32(time.Now().Unix()))
	go m.sweep()
	return m
}

func (m *ChannelManager) sweep() {
	ticker := time.NewTicker(channelSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.removeClosed()
		case <-m.server.closed:
			for _, ch := range m.snapshot() {
				ch.Close()
			}
			return
		}
	}
}

// nextChannelID returns a channel id that is not zero.
func (m *ChannelManager) nextChannelID() uint32 {
	for {
		if id := m.lastChannelID.Add(1); id != 0 {
			return id
		}
	}
}

// Get returns the open channel with the id.
func (m *ChannelManager) Get(id uint32) (*serverSecureChannel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channelsByID[id]
	return ch, ok
}

// Add tracks the channel. It returns BadTCPServerTooBusy when the server has the maximum
// number of open channels.
func (m *ChannelManager) Add(ch *serverSecureChannel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxCount > 0 && uint32(len(m.channelsByID)) >= m.maxCount {
		return ua.BadTCPServerTooBusy
	}
	m.channelsByID[ch.channelID] = ch
	return nil
}

// Delete stops tracking the channel.
func (m *ChannelManager) Delete(ch *serverSecureChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channelsByID, ch.channelID)
}

// Len returns the number of open channels.
func (m *ChannelManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channelsByID)
}

func (m *ChannelManager) snapshot() []*serverSecureChannel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channels := make([]*serverSecureChannel, 0, len(m.channelsByID))
	for _, ch := range m.channelsByID {
		channels = append(channels, ch)
	}
	return channels
}

func (m *ChannelManager) removeClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.channelsByID {
		if ch.Closed() {
			delete(m.channelsByID, id)
			m.server.logger.WithField("channel_id", id).Debugf("removed closed channel, %d channel(s) open", len(m.channelsByID))
		}
	}
}
