package domain

import "time"

// User is the account owning linked services.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:64"`
	Username     string    `gorm:"column:username;size:128"`
	DisplayName  string    `gorm:"column:display_name;size:256"`
	Email        string    `gorm:"column:email;size:320;index:idx_users_email"`
	Description  string    `gorm:"column:description;size:1024"`
	AvatarFileID string    `gorm:"column:avatar_file_id;size:64"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`

	// Avatar is enriched after load from the file resolver.
	Avatar *File `gorm:"-" json:",omitempty"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// UserProfile is the projection returned by the relational join used by listing views.
type UserProfile struct {
	ID          string `gorm:"column:id"`
	Name        string `gorm:"column:name"`
	Email       string `gorm:"column:email"`
	Description string `gorm:"column:description"`
}

// Channel groups members around a referenced entity.
type Channel struct {
	ID        string    `gorm:"column:id;primaryKey;size:64"`
	UserID    string    `gorm:"column:user_id;size:64;index:idx_channels_user"`
	RefID     string    `gorm:"column:ref_id;size:64"`
	RefType   string    `gorm:"column:ref_type;size:32"`
	Title     string    `gorm:"column:title;size:256"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`

	// Members is enriched after load from a member query.
	Members []Member `gorm:"-" json:",omitempty"`
}

// TableName exposes the table backing channels.
func (Channel) TableName() string {
	return "channels"
}

// Member links a user to a channel.
type Member struct {
	ChannelID string `gorm:"column:channel_id;primaryKey;size:64;index:idx_members_channel"`
	UserID    string `gorm:"column:user_id;primaryKey;size:64"`
	IsCreator bool   `gorm:"column:is_creator"`
}

// TableName exposes the table backing channel members.
func (Member) TableName() string {
	return "channel_members"
}

// File is an uploaded asset (avatars, attachments).
type File struct {
	ID          string `gorm:"column:id;primaryKey;size:64"`
	Name        string `gorm:"column:name;size:256"`
	ContentType string `gorm:"column:content_type;size:128"`
	URL         string `gorm:"column:url;size:512"`
}

// TableName exposes the table backing files.
func (File) TableName() string {
	return "files"
}

// Credential holds the provider tokens of one owner for one provider family.
type Credential struct {
	OwnerID      string `gorm:"column:owner_id;primaryKey;size:64"`
	Provider     string `gorm:"column:provider;primaryKey;size:32"`
	AccessToken  string `gorm:"column:access_token;size:1024"`
	AccessSecret string `gorm:"column:access_secret;size:1024"`
}

// TableName exposes the table backing provider credentials.
func (Credential) TableName() string {
	return "provider_credentials"
}

// Metric is a previously fetched metric value of one service.
type Metric struct {
	OwnerID   string    `gorm:"column:owner_id;primaryKey;size:64"`
	Service   string    `gorm:"column:service;primaryKey;size:32"`
	Name      string    `gorm:"column:name;primaryKey;size:32"`
	Value     int64     `gorm:"column:value"`
	FetchedAt time.Time `gorm:"column:fetched_at;index:idx_metrics_fetched"`
}

// TableName exposes the table backing metric values.
func (Metric) TableName() string {
	return "service_metrics"
}

// MetricFollowers is the follower count metric.
const MetricFollowers = "followers"
