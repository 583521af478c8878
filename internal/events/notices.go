package events

import "github.com/google/uuid"

// Stable message ids shown to users.
const (
	MsgErrorDeletingDetails   = "maps.feedback.errorDeletingDetailsOfMap"
	MsgErrorDeletingThumbnail = "maps.feedback.errorDeletingThumbnailOfMap"
	MsgErrorDeletingMap       = "maps.feedback.errorDeletingMap"
	MsgAllResourcesDeleted    = "maps.feedback.allResDeleted"
	MsgErrorFetchingDetails   = "maps.feedback.errorFetchingDetailsOfMap"
	MsgErrorSizeExceeded      = "maps.feedback.errorSizeExceeded"
	MsgErrorSavingDetails     = "maps.feedback.errorSavingDetailsOfMap"
	MsgErrorSavingThumbnail   = "maps.feedback.errorSavingThumbnailOfMap"
	MsgErrorSavingLinked      = "maps.feedback.errorSavingLinkedResourceOfMap"
	MsgMapsError              = "geostore.mapsError"
	TitleSavedMap             = "map.savedMapTitle"
	MsgSavedMap               = "map.savedMapMessage"
)

const (
	saveNoticeDismiss  = 6
	saveNoticePosition = "tc"
)

func newNotice(level, title, message string) Notice {
	return Notice{ID: uuid.NewString(), Level: level, Title: title, Message: message}
}

// Error builds an error notice for message.
func Error(message string) Notice {
	return newNotice(LevelError, "", message)
}

// ErrorWithDetail builds an error notice carrying the underlying error text.
func ErrorWithDetail(message string, err error) Notice {
	n := Error(message)
	if err != nil {
		n.Detail = err.Error()
	}
	return n
}

// Success builds a success notice for message.
func Success(message string) Notice {
	return newNotice(LevelSuccess, "", message)
}

// Info builds an informational notice for message.
func Info(message string) Notice {
	return newNotice(LevelInfo, "", message)
}

// SavedMap is the top-centre notice shown after a map save.
func SavedMap() Notice {
	n := newNotice(LevelSuccess, TitleSavedMap, MsgSavedMap)
	n.AutoDismiss = saveNoticeDismiss
	n.Position = saveNoticePosition
	return n
}

// SaveFailed is the top-centre notice shown when a map save fails.
func SaveFailed(err error) Notice {
	n := ErrorWithDetail(MsgMapsError, err)
	n.AutoDismiss = saveNoticeDismiss
	n.Position = saveNoticePosition
	return n
}

// LinkedSaveFailed is the notice for a linked resource of a map whose save
// failed while the map itself may have been saved. It is scoped by the
// attribute the resource is linked under.
func LinkedSaveFailed(attribute string, err error) Notice {
	message := MsgErrorSavingLinked
	switch attribute {
	case "details":
		message = MsgErrorSavingDetails
	case "thumbnail":
		message = MsgErrorSavingThumbnail
	}
	n := ErrorWithDetail(message, err)
	n.AutoDismiss = saveNoticeDismiss
	n.Position = saveNoticePosition
	return n
}
