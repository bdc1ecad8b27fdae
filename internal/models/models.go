package models

import "time"

// User represents an account within the Circle network.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	FirstName     string    `json:"firstName,omitempty"`
	LastName      string    `json:"lastName,omitempty"`
	PasswordHash  string    `json:"-"`
	Location      string    `json:"location,omitempty"`
	Occupation    string    `json:"occupation,omitempty"`
	PicturePath   string    `json:"picturePath,omitempty"`
	Friends       []string  `json:"friends"`
	ViewedProfile int64     `json:"viewedProfile"`
	Impressions   int64     `json:"impressions"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasFriend reports whether id is present in the user's friend set.
func (u User) HasFriend(id string) bool {
	return contains(u.Friends, id)
}

// Post is a piece of content shared by a user. Author fields are copied at
// creation so feeds render without a join.
type Post struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Username        string    `json:"username"`
	FirstName       string    `json:"firstName,omitempty"`
	LastName        string    `json:"lastName,omitempty"`
	Location        string    `json:"location,omitempty"`
	UserPicturePath string    `json:"userPicturePath,omitempty"`
	Description     string    `json:"description"`
	PicturePath     string    `json:"picturePath,omitempty"`
	Likes           []string  `json:"likes"`
	CreatedAt       time.Time `json:"createdAt"`
}

// LikedBy reports whether the given user has liked the post.
func (p Post) LikedBy(userID string) bool {
	return contains(p.Likes, userID)
}

// ProfileUpdate carries the optional fields a user may edit on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Location   *string `json:"location"`
	Occupation *string `json:"occupation"`
}

// Empty reports whether the update changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Location == nil && u.Occupation == nil
}

// Apply copies the set fields onto user.
func (u ProfileUpdate) Apply(user *User) {
	if u.FirstName != nil {
		user.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		user.LastName = *u.LastName
	}
	if u.Location != nil {
		user.Location = *u.Location
	}
	if u.Occupation != nil {
		user.Occupation = *u.Occupation
	}
}

// PostFilter narrows a post listing. The zero value lists every post.
type PostFilter struct {
	UserID string
}

// Toggle adds id to set when absent and removes it when present. The
// returned bool reports whether id is a member afterwards.
func Toggle(set []string, id string) ([]string, bool) {
	for i, existing := range set {
		if existing == id {
			out := make([]string, 0, len(set)-1)
			out = append(out, set[:i]...)
			out = append(out, set[i+1:]...)
			return out, false
		}
	}
	out := make([]string, 0, len(set)+1)
	out = append(out, set...)
	return append(out, id), true
}

func contains(set []string, id string) bool {
	for _, existing := range set {
		if existing == id {
			return true
		}
	}
	return false
}
