package errors

import (
	"errors"
	"sync"
)

// Collector gathers recovered errors so callers can report them after a pass
// completes. It is safe for concurrent use.
type Collector struct {
	errors []error
	mutex  sync.RWMutex
}

// NewCollector creates a new error collector
func NewCollector() *Collector {
	return &Collector{
		errors: make([]error, 0),
	}
}

// Add records an error. Nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil || c == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = append(c.errors, err)
}

// Errors returns a copy of all collected errors
func (c *Collector) Errors() []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]error, len(c.errors))
	copy(result, c.errors)
	return result
}

// HasErrors returns true if there are any errors
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.errors) > 0
}

// Len returns the number of collected errors
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.errors)
}

// ByCode returns the collected SiteErrors with the given code
func (c *Collector) ByCode(code string) []*SiteError {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var matched []*SiteError
	for _, err := range c.errors {
		var se *SiteError
		if errors.As(err, &se) && se.Code == code {
			matched = append(matched, se)
		}
	}
	return matched
}

// ByFile returns the collected SiteErrors located in the given file
func (c *Collector) ByFile(file string) []*SiteError {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var matched []*SiteError
	for _, err := range c.errors {
		var se *SiteError
		if errors.As(err, &se) && se.FilePath == file {
			matched = append(matched, se)
		}
	}
	return matched
}

// Clear clears all errors
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = c.errors[:0]
}
