package tenant

// Tenant is the top-level owner of topics and credentials. Created and
// destroyed by the external management layer; this service reads it and
// increments its counters, nothing else.
type Tenant struct {
	ID          string `bson:"_id" json:"id"`
	Alias       string `bson:"alias" json:"alias"`
	Key         string `bson:"key" json:"-"`
	Secret      string `bson:"secret" json:"-"`
	Public      bool   `bson:"public" json:"public"`
	MessagesIn  int64  `bson:"messages_in" json:"messages_in"`
	MessagesOut int64  `bson:"messages_out" json:"messages_out"`
}

// SubScope is a tenant-owned sub-partition of the topic space.
type SubScope struct {
	ID          string `bson:"_id" json:"id"`
	TenantID    string `bson:"tenant_id" json:"tenant_id"`
	Alias       string `bson:"alias" json:"alias"`
	MessagesIn  int64  `bson:"messages_in" json:"messages_in"`
	MessagesOut int64  `bson:"messages_out" json:"messages_out"`
}

// Resolution is a topic address with its scope segments resolved against the
// directory. SubScope is nil when the second segment did not name one, in
// which case it stayed part of Path.
type Resolution struct {
	Tenant   *Tenant
	SubScope *SubScope
	Path     []string
}

// RelativePath is the path below the resolved scope, used as the rule and
// integration matching key.
func (r Resolution) RelativePath() string {
	out := ""
	for i, s := range r.Path {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}
