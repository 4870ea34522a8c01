// Package http provides HTTP handlers and middleware for the scheduling API.
//
// The router exposes the following endpoints, all exchanging JSON with RFC 3339
// timestamps:
//   - POST /lessons: schedules a lesson. Body: lessonRequest. Responds 201 with
//     the stored activity, or 409 with the full ordered conflict list.
//   - POST /lessons/preview: returns the conflicts a lesson request would hit
//     without booking anything.
//   - POST /bookings: reserves a practice room. Body: bookingRequest.
//   - GET /activities/today, GET /activities/upcoming: unfinished activities.
//   - GET /activities/{id}: a single activity. Identifiers without a LES- or
//     BKG- prefix answer 404 directly.
//   - POST /activities/{id}/start, /complete, /cancel: lifecycle transitions.
//     Cancel reports whether the cancellation was free of charge.
//   - POST /activities/{id}/reschedule: moves the activity. Body: {"start"}.
//   - POST /activities/{id}/package: links a lesson to a course package.
//   - POST /activities/{id}/paid: marks a room booking as paid.
//   - GET /teachers/{id}/activities, /students/{id}/activities,
//     /rooms/{id}/activities: per-resource listings ordered by start.
//   - GET /teachers/{id}/availability?from=&to=: weekly working-hour windows
//     starting in the range, seven days from now by default.
//   - GET /rooms/{id}/suitability?instrument=: whether the instrument may be
//     played in the room. Advisory only.
//   - GET /health: liveness probe, never authenticated.
//
// Every other route requires "Authorization: Bearer <token>" matching the
// configured token hash. Request and response DTOs live in dto.go.
package http
