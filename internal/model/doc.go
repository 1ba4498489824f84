// Package model holds the trading value types and their validation.
package model
