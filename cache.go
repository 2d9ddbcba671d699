package numgrade

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// astCache memoizes parsed expressions. Grading the same answer against
// several entries, or regrading a class's worth of submissions, reparses
// nothing.
type astCache struct {
	lru  *lru.Cache[string, *Expr]
	opts []ParseOption
	key  string
}

// newASTCache returns a cache of at most size expressions parsed with opts.
func newASTCache(size int, opts ...ParseOption) (*astCache, error) {
	c, err := lru.New[string, *Expr](size)
	if err != nil {
		return nil, err
	}
	var ctx parsectx
	for _, o := range opts {
		ctx = o.parseOption(ctx)
	}
	return &astCache{lru: c, opts: opts, key: ctx.key()}, nil
}

// parse returns the parsed form of src, from cache when possible. Parse
// errors are not cached; failed submissions are rare and usually edited
// before retry.
func (c *astCache) parse(src string) (*Expr, error) {
	k := c.key + "\x00" + src
	if ex, ok := c.lru.Get(k); ok {
		return ex, nil
	}
	ex, err := Parse(src, c.opts...)
	if err != nil {
		return nil, err
	}
	c.lru.Add(k, ex)
	return ex, nil
}
