// Package postgres stores users, rooms, room membership and words.
package postgres
