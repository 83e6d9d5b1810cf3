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

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/innovationmech/sagaflow/pkg/saga"
)

// commandPublisher is the narrow engine surface the shared step helpers need.
// Both generic engines satisfy it.
type commandPublisher interface {
	PublishCommand(ctx context.Context, topic string, event *saga.NotificationEvent) error
	SaveSaga(ctx context.Context, sg *saga.Saga) error
}

// sendCommand serializes the command payload and publishes it to a
// participant topic, carrying the saga id and correlation id forward.
func sendCommand(ctx context.Context, pub commandPublisher, topic string, eventType saga.EventType, sg *saga.Saga, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serialize %s command: %w", eventType, err)
	}
	return pub.PublishCommand(ctx, topic, &saga.NotificationEvent{
		EventType:     eventType,
		SagaID:        sg.ID,
		EventPayload:  string(raw),
		CorrelationID: sg.CorrelationID,
	})
}

// getStudentCommand asks the student service to look the student up by PEN.
type getStudentCommand struct {
	PEN string `json:"pen"`
}

// requestGetStudent publishes the GET_STUDENT command shared by both saga
// types.
func requestGetStudent(ctx context.Context, pub commandPublisher, sg *saga.Saga, core *StudentCoreData) error {
	return sendCommand(ctx, pub, TopicStudentAPI, EventGetStudent, sg, getStudentCommand{PEN: core.PEN})
}

// mergeStudentResponse folds the participant's STUDENT_FOUND response into
// the carried demographics. The found studentID always wins; demographic
// fields from the request win over the stored record, matching the reviewer's
// completed edits.
func mergeStudentResponse(event *saga.NotificationEvent, core *StudentCoreData) error {
	if event.EventPayload == "" {
		return fmt.Errorf("student response payload is empty")
	}
	var found StudentCoreData
	if err := json.Unmarshal([]byte(event.EventPayload), &found); err != nil {
		return fmt.Errorf("deserialize student response: %w", err)
	}
	if found.StudentID == "" {
		return fmt.Errorf("student response carries no studentID")
	}
	core.StudentID = found.StudentID
	if core.LegalFirst == "" {
		core.LegalFirst = found.LegalFirst
	}
	if core.LegalMiddle == "" {
		core.LegalMiddle = found.LegalMiddle
	}
	if core.GenderCode == "" {
		core.GenderCode = found.GenderCode
	}
	if core.LocalID == "" {
		core.LocalID = found.LocalID
	}
	return nil
}

// requestUpdateStudent publishes the merged demographics back to the student
// service.
func requestUpdateStudent(ctx context.Context, pub commandPublisher, sg *saga.Saga, core *StudentCoreData) error {
	return sendCommand(ctx, pub, TopicStudentAPI, EventUpdateStudent, sg, core)
}

// digitalIDCommand stamps the matched student onto the requester's digital
// identity.
type digitalIDCommand struct {
	DigitalID string `json:"digitalID"`
	StudentID string `json:"studentID"`
}

// requestUpdateDigitalID publishes the UPDATE_DIGITAL_ID command.
func requestUpdateDigitalID(ctx context.Context, pub commandPublisher, sg *saga.Saga, digitalID, studentID string) error {
	return sendCommand(ctx, pub, TopicDigitalIDAPI, EventUpdateDigitalID, sg, digitalIDCommand{
		DigitalID: digitalID,
		StudentID: studentID,
	})
}

// notifyCommand is the completion email request.
type notifyCommand struct {
	Email     string `json:"emailAddress"`
	FirstName string `json:"firstName,omitempty"`
	Comment   string `json:"completeComment,omitempty"`
	Template  string `json:"templateName"`
}

// requestNotifyStudent publishes the NOTIFY_STUDENT command shared by both
// saga types.
func requestNotifyStudent(ctx context.Context, pub commandPublisher, sg *saga.Saga, core *StudentCoreData, comment, template string) error {
	return sendCommand(ctx, pub, TopicEmailAPI, EventNotifyStudent, sg, notifyCommand{
		Email:     core.Email,
		FirstName: core.LegalFirst,
		Comment:   comment,
		Template:  template,
	})
}
