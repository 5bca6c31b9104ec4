/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package attachment

// Category is the semantic type label of an attachment.
type Category string

const (
	CategoryMessage     Category = "message"
	CategoryApplication Category = "application"
	CategoryAudio       Category = "audio"
	CategoryImage       Category = "image"
	CategoryVideo       Category = "video"
	CategoryModel       Category = "model"
	CategoryText        Category = "text"
	CategoryMultipart   Category = "multipart"
	CategoryOther       Category = "other"
)

var categories = [...]Category{
	TypeText:        CategoryText,
	TypeMultipart:   CategoryMultipart,
	TypeMessage:     CategoryMessage,
	TypeApplication: CategoryApplication,
	TypeAudio:       CategoryAudio,
	TypeImage:       CategoryImage,
	TypeVideo:       CategoryVideo,
	TypeModel:       CategoryModel,
	TypeOther:       CategoryOther,
}

// Classify maps a structural type code to its category. Unknown codes are
// CategoryOther.
func Classify(code TypeCode) Category {
	if code < 0 || int(code) >= len(categories) {
		return CategoryOther
	}
	return categories[code]
}
