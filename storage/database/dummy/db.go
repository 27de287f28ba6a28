package dummydb

import (
	"sync"

	"github.com/studysphere/backend/core/badge"
	"github.com/studysphere/backend/core/group"
	"github.com/studysphere/backend/core/session"
	"github.com/studysphere/backend/core/user"
)

// DB is an in-memory stand-in for the relational store, used in tests.
// Cascades mirror the real schema: deleting an account removes everything it
// created/hosted/joined; deleting a group removes its memberships but only
// detaches its sessions; deleting a session removes its RSVPs.
type (
	DB struct {
		account    *accountTable
		group      *groupTable
		membership *membershipTable
		session    *sessionTable
		rsvp       *rsvpTable
		badge      *badgeTable
	}

	accountTable struct {
		sync.RWMutex
		table map[string]*user.Account
	}

	groupTable struct {
		sync.RWMutex
		table map[string]*group.Group
	}

	membershipTable struct {
		sync.RWMutex
		table map[string]*group.Membership
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*session.Session
	}

	rsvpTable struct {
		sync.RWMutex
		table map[string]*session.RSVP
	}

	badgeTable struct {
		sync.RWMutex
		table map[string]*badge.Badge
	}
)

func Open() (*DB, error) {
	db := &DB{
		account:    &accountTable{table: make(map[string]*user.Account)},
		group:      &groupTable{table: make(map[string]*group.Group)},
		membership: &membershipTable{table: make(map[string]*group.Membership)},
		session:    &sessionTable{table: make(map[string]*session.Session)},
		rsvp:       &rsvpTable{table: make(map[string]*session.RSVP)},
		badge:      &badgeTable{table: make(map[string]*badge.Badge)},
	}
	return db, nil
}
