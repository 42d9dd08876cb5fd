// Copyright 2021 Converter Systems LLC. All rights reserved.

package server

import (
	"sync"
	"time"
)

// Scheduler shares one PollGroup among all monitored items that sample at the same interval.
type Scheduler struct {
	sync.Mutex
	server              *Server
	pollGroups          map[time.Duration]*PollGroup
	minSamplingInterval time.Duration
}

// NewScheduler instantiates a new Scheduler.
func NewScheduler(server *Server) *Scheduler {
	return &Scheduler{
		server:              server,
		pollGroups:          make(map[time.Duration]*PollGroup),
		minSamplingInterval: time.Duration(server.ServerCapabilities().MinSupportedSampleRate * float64(time.Millisecond)),
	}
}

// GetPollGroup returns the PollGroup for the interval, starting one if needed.
func (s *Scheduler) GetPollGroup(interval time.Duration) *PollGroup {
	s.Lock()
	defer s.Unlock()
	if interval < s.minSamplingInterval {
		interval = s.minSamplingInterval
	}
	if g, ok := s.pollGroups[interval]; ok {
		return g
	}
	g := NewPollGroup(interval, s.server.closing)
	s.pollGroups[interval] = g
	s.server.logger.WithField("interval", interval).Debug("started poll group")
	return g
}

// Len returns the number of poll groups.
func (s *Scheduler) Len() int {
	s.Lock()
	defer s.Unlock()
	return len(s.pollGroups)
}

// PollGroup calls Poll on each listener once per interval until done is closed.
type PollGroup struct {
	sync.Mutex
	done      <-chan struct{}
	interval  time.Duration
	listeners map[PollListener]struct{}
}

// NewPollGroup starts a PollGroup.
func NewPollGroup(interval time.Duration, done <-chan struct{}) *PollGroup {
	g := &PollGroup{
		done:      done,
		interval:  interval,
		listeners: map[PollListener]struct{}{},
	}
	go g.run()
	return g
}

func (g *PollGroup) run() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-g.done:
			g.Lock()
			g.listeners = map[PollListener]struct{}{}
			g.Unlock()
			return
		case <-ticker.C:
			g.Lock()
			listeners := make([]PollListener, 0, len(g.listeners))
			for l := range g.listeners {
				listeners = append(listeners, l)
			}
			g.Unlock()
			for _, l := range listeners {
				l.Poll()
			}
		}
	}
}

// Subscribe adds the listener.
func (g *PollGroup) Subscribe(listener PollListener) {
	g.Lock()
	g.listeners[listener] = struct{}{}
	g.Unlock()
}

// Unsubscribe removes the listener.
func (g *PollGroup) Unsubscribe(listener PollListener) {
	g.Lock()
	delete(g.listeners, listener)
	g.Unlock()
}

// Len returns the number of listeners.
func (g *PollGroup) Len() int {
	g.Lock()
	defer g.Unlock()
	return len(g.listeners)
}

// PollListener samples when polled.
type PollListener interface {
	Poll()
}
