// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package sagas

// StudentCoreData is the demographic snapshot both saga types carry to the
// participant services. It rides opaquely on the saga row and is merged into
// the student record by the UPDATE_STUDENT step.
type StudentCoreData struct {
	StudentID     string `json:"studentID,omitempty"`
	PEN           string `json:"pen" validate:"required,len=9,numeric"`
	LegalFirst    string `json:"legalFirstName,omitempty"`
	LegalLast     string `json:"legalLastName" validate:"required"`
	LegalMiddle   string `json:"legalMiddleNames,omitempty"`
	DOB           string `json:"dob" validate:"required,datetime=2006-01-02"`
	GenderCode    string `json:"genderCode,omitempty"`
	Email         string `json:"email" validate:"required,email"`
	MincodeSchool string `json:"mincodeAttendedSchool,omitempty"`
	LocalID       string `json:"localID,omitempty"`
}

// PenRequestPayload is the business payload of the PEN request completion
// saga.
type PenRequestPayload struct {
	StudentCoreData

	// PenRequestID identifies the request being completed.
	PenRequestID string `json:"penRequestID" validate:"required,uuid4"`

	// DigitalID links the requester's digital identity; the saga stamps the
	// matched student onto it.
	DigitalID string `json:"digitalID" validate:"required,uuid4"`

	// Reviewer is the staff member who completed the match.
	Reviewer string `json:"reviewer,omitempty"`

	// CompleteComment is included in the completion notification.
	CompleteComment string `json:"completeComment,omitempty"`

	// DemogChanged is "Y" when the request changed demographic fields, which
	// forces the student record update even on an exact match.
	DemogChanged string `json:"demogChanged,omitempty" validate:"omitempty,oneof=Y N"`

	// RejectionReason is set by the compensating path when no student
	// matches.
	RejectionReason string `json:"rejectionReason,omitempty"`
}

// ProfileRequestPayload is the business payload of the student profile
// completion saga.
type ProfileRequestPayload struct {
	StudentCoreData

	// ProfileRequestID identifies the request being completed.
	ProfileRequestID string `json:"studentProfileRequestID" validate:"required,uuid4"`

	// DigitalID links the requester's digital identity.
	DigitalID string `json:"digitalID" validate:"required,uuid4"`

	// Reviewer is the staff member who completed the request.
	Reviewer string `json:"reviewer,omitempty"`

	// CompleteComment is included in the completion notification.
	CompleteComment string `json:"completeComment,omitempty"`
}
