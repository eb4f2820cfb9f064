package types

// EntityPost is the single-table discriminator stored on every post item.
const EntityPost = "POST"

// Change-capture operation kinds as reported by the stream.
const (
	StreamEventInsert = "INSERT"
	StreamEventModify = "MODIFY"
	StreamEventRemove = "REMOVE"
)

// Event bus routing for newly created posts.
const (
	SourceSchedulePosts           = "schedule.posts"
	DetailTypeSchedulePostCreated = "SchedulePostCreated"
)

// DeliveryContext24h tags the payload handed to the delivery handler.
const DeliveryContext24h = "24hr"

// ScheduleNameSuffix is appended to a post id to form its timer name.
const ScheduleNameSuffix = "-scheduled-post"
